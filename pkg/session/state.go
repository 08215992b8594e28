// Package session implements PGAdapter's per-connection GUC table: the
// key/value settings store PostgreSQL clients read and write with
// SHOW/SET/RESET, plus the spanner.* vendor namespace (see vendor.go).
package session

import (
	"strings"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/params"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/pgwire"
)

// Context distinguishes a SET's scope: SESSION persists until RESET or
// disconnect, LOCAL reverts at the end of the current transaction.
type Context int

const (
	ContextSession Context = iota
	ContextLocal
)

// entry is one GUC's current and (if set via SET LOCAL) pending-rollback
// value.
type entry struct {
	value string
	// savedForRollback holds the session-scoped value to restore when a
	// SET LOCAL's transaction ends, nil if no LOCAL override is active.
	savedForRollback *string
}

// State is a connection's full GUC table. It is not safe for concurrent
// use: session state reads and writes are single-threaded per connection,
// matching the single-reader-goroutine connection model in pkg/frontend.
type State struct {
	settings map[string]*entry
	// warnOnUnknown, when set, makes Set store a name PGAdapter does not
	// recognize and that is not under the spanner.* vendor namespace instead
	// of rejecting it; no warning is emitted. NewState leaves it unset.
	warnOnUnknown bool
}

// defaultSettings are well-known GUCs every connection starts with beyond
// the ParameterStatus set in pkg/params: settable via SET without being
// reported to the client on change.
var defaultSettings = map[string]string{
	"application_name":              "",
	"server_version":                "14.1",
	"session_authorization":         "",
	"search_path":                   "public",
	"extra_float_digits":            "1",
	"statement_timeout":             "0",
	"transaction_isolation":         "serializable",
	"transaction_read_only":         "off",
	"default_transaction_isolation": "serializable",
}

// NewState builds a State seeded with the fixed parameters every connection
// starts with, ready for startup-parameter and options=-c
// overrides to be layered on top.
func NewState() *State {
	s := &State{settings: make(map[string]*entry)}
	for k, v := range params.BaseParameterStatuses {
		s.settings[foldName(k)] = &entry{value: v}
	}
	for k, v := range defaultSettings {
		s.settings[foldName(k)] = &entry{value: v}
	}
	return s
}

// Get returns a setting's current value and whether it is defined.
func (s *State) Get(name string) (string, bool) {
	e, ok := s.settings[foldName(name)]
	if !ok {
		return "", false
	}
	return e.value, true
}

// Set assigns name to value in the given Context. Unknown names outside
// the spanner.* vendor namespace are rejected with 42704 unless
// warnOnUnknown is set, in which case the value is stored as given.
func (s *State) Set(ctx Context, name, value string) error {
	key := foldName(name)
	e, known := s.settings[key]

	if !known && !IsVendorSetting(key) {
		if s.warnOnUnknown {
			s.settings[key] = &entry{value: value}
			return nil
		}
		return pgwire.NewErr(pgwire.Error, pgwire.CodeUndefinedParameter, "unrecognized configuration parameter \""+name+"\"", nil)
	}

	if e == nil {
		e = &entry{}
		s.settings[key] = e
	}

	if ctx == ContextLocal && e.savedForRollback == nil {
		saved := e.value
		e.savedForRollback = &saved
	}
	e.value = value
	return nil
}

// Reset restores name to its startup/default value, dropping any session
// override. Vendor settings with no default are cleared entirely.
func (s *State) Reset(name string) {
	key := foldName(name)
	for k, def := range params.BaseParameterStatuses {
		if foldName(k) == key {
			s.settings[key] = &entry{value: def}
			return
		}
	}
	if def, ok := defaultSettings[key]; ok {
		s.settings[key] = &entry{value: def}
		return
	}
	delete(s.settings, key)
}

// Show returns the display text for SHOW name, per PG semantics: SHOW ALL
// is handled by the caller iterating Names/Get.
func (s *State) Show(name string) (string, bool) {
	return s.Get(name)
}

// Names returns every currently defined setting name.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.settings))
	for k := range s.settings {
		names = append(names, k)
	}
	return names
}

// EndTransaction reverts every SET LOCAL override made during the just
// ended transaction. COMMIT and ROLLBACK are not distinguished: PG
// reverts LOCAL settings on both.
func (s *State) EndTransaction() {
	for _, e := range s.settings {
		if e.savedForRollback != nil {
			e.value = *e.savedForRollback
			e.savedForRollback = nil
		}
	}
}

// ApplyStartupParameters layers the client's StartupMessage parameters onto
// the default GUC table, called once before the first query.
// Protocol-level keys (user, database, replication) select the connection's
// target rather than a GUC and are skipped here. Startup parameters are
// applied, not validated: a name PGAdapter does not recognize is stored
// rather than rejected, since refusing it would refuse the connection.
func (s *State) ApplyStartupParameters(startup map[string]string) error {
	for k, v := range startup {
		switch foldName(k) {
		case "user", "database", "replication":
			continue
		case "options":
			if err := s.applyOptionsString(v); err != nil {
				return err
			}
			continue
		}
		key := foldName(k)
		if e, ok := s.settings[key]; ok {
			e.value = v
		} else {
			s.settings[key] = &entry{value: v}
		}
	}
	return nil
}

// applyOptionsString parses a libpq `options=-c name=value -c name2=value2`
// connection parameter and applies each `-c` setting.
func (s *State) applyOptionsString(options string) error {
	fields := strings.Fields(options)
	for i := 0; i < len(fields); i++ {
		if fields[i] != "-c" || i+1 >= len(fields) {
			continue
		}
		kv := fields[i+1]
		i++
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if err := s.Set(ContextSession, parts[0], parts[1]); err != nil {
			return err
		}
	}
	return nil
}

// foldName normalizes a GUC name for lookup. Real PostgreSQL treats
// setting names case-insensitively regardless of how they're displayed in
// ParameterStatus messages (e.g. "DateStyle"), so SET/SHOW/RESET all fold
// to lowercase; display-casing for ParameterStatus is the caller's concern
// (pkg/params.BaseTrackedParameters names the canonical spelling).
func foldName(name string) string {
	return strings.ToLower(name)
}
