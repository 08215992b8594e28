package session

import (
	"strconv"
	"strings"
	"time"
)

// Vendor setting names under the spanner.* namespace. These are
// PGAdapter-specific GUCs with no PostgreSQL equivalent; State.Set
// forwards them without the "unrecognized configuration parameter" check
// applied to everything else.
const (
	VendorForceAutocommit    = "spanner.force_autocommit"
	VendorAutocommitDMLMode  = "spanner.autocommit_dml_mode"
	VendorDDLTransactionMode = "spanner.ddl_transaction_mode"
	VendorReadOnlyStaleness  = "spanner.read_only_staleness"
	VendorStatementTimeout   = "spanner.statement_timeout"
)

// AutocommitDMLMode values for spanner.autocommit_dml_mode.
const (
	AutocommitDMLModeTransactional        = "transactional"
	AutocommitDMLModePartitionedNonAtomic = "partitioned_non_atomic"
)

// IsVendorSetting reports whether name falls under the spanner.* namespace,
// meaning it is forwarded to the backend verbatim rather than rejected as
// an unrecognized GUC.
func IsVendorSetting(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "spanner.")
}

// ForceAutocommit reports the session's current spanner.force_autocommit
// setting. Absent or unrecognized values are treated as off.
func (s *State) ForceAutocommit() bool {
	v, _ := s.Get(VendorForceAutocommit)
	return strings.EqualFold(v, "on") || strings.EqualFold(v, "true")
}

// AutocommitDMLMode returns the session's current
// spanner.autocommit_dml_mode, defaulting to transactional.
func (s *State) AutocommitDMLMode() string {
	v, ok := s.Get(VendorAutocommitDMLMode)
	if !ok || v == "" {
		return AutocommitDMLModeTransactional
	}
	return v
}

// StatementTimeout returns the effective statement timeout, zero when
// disabled. spanner.statement_timeout takes precedence over the standard
// statement_timeout GUC. Values are either a duration string ("5s",
// "250ms") or a bare integer millisecond count, matching how PostgreSQL
// clients set statement_timeout.
func (s *State) StatementTimeout() time.Duration {
	for _, name := range []string{VendorStatementTimeout, "statement_timeout"} {
		v, ok := s.Get(name)
		if !ok || v == "" || v == "0" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 0
}
