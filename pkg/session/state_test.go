package session

import "testing"

func TestSetLocalRevertsOnTransactionEnd(t *testing.T) {
	s := NewState()
	if err := s.Set(ContextSession, "TimeZone", "UTC"); err != nil {
		t.Fatalf("Set session: %v", err)
	}
	if err := s.Set(ContextLocal, "TimeZone", "America/New_York"); err != nil {
		t.Fatalf("Set local: %v", err)
	}
	v, _ := s.Get("timezone")
	if v != "America/New_York" {
		t.Fatalf("Get = %q, want America/New_York", v)
	}
	s.EndTransaction()
	v, _ = s.Get("timezone")
	if v != "UTC" {
		t.Fatalf("Get after EndTransaction = %q, want UTC", v)
	}
}

func TestSetSessionPersistsAcrossTransactions(t *testing.T) {
	s := NewState()
	if err := s.Set(ContextSession, "application_name", "myapp"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.EndTransaction()
	v, _ := s.Get("application_name")
	if v != "myapp" {
		t.Fatalf("Get = %q, want myapp", v)
	}
}

func TestUnknownSettingRejected(t *testing.T) {
	s := NewState()
	err := s.Set(ContextSession, "totally_unknown_setting", "x")
	if err == nil {
		t.Fatal("expected error for unknown setting")
	}
}

func TestVendorSettingForwardedWithoutError(t *testing.T) {
	s := NewState()
	if err := s.Set(ContextSession, VendorAutocommitDMLMode, AutocommitDMLModePartitionedNonAtomic); err != nil {
		t.Fatalf("Set vendor setting: %v", err)
	}
	if got := s.AutocommitDMLMode(); got != AutocommitDMLModePartitionedNonAtomic {
		t.Fatalf("AutocommitDMLMode = %q", got)
	}
}

func TestResetRestoresDefault(t *testing.T) {
	s := NewState()
	if err := s.Set(ContextSession, "TimeZone", "America/New_York"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Reset("TimeZone")
	v, _ := s.Get("timezone")
	if v != "UTC" {
		t.Fatalf("Get after Reset = %q, want UTC", v)
	}
}

func TestApplyStartupParametersParsesOptions(t *testing.T) {
	s := NewState()
	err := s.ApplyStartupParameters(map[string]string{
		"application_name": "psql",
		"options":          "-c spanner.force_autocommit=on -c TimeZone=UTC",
	})
	if err != nil {
		t.Fatalf("ApplyStartupParameters: %v", err)
	}
	if !s.ForceAutocommit() {
		t.Fatal("expected ForceAutocommit to be on")
	}
	if v, _ := s.Get("application_name"); v != "psql" {
		t.Fatalf("application_name = %q", v)
	}
}

func TestStatementTimeout(t *testing.T) {
	s := NewState()
	if d := s.StatementTimeout(); d != 0 {
		t.Fatalf("default StatementTimeout = %v, want 0", d)
	}
	if err := s.Set(ContextSession, "statement_timeout", "250"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if d := s.StatementTimeout(); d.Milliseconds() != 250 {
		t.Fatalf("StatementTimeout = %v, want 250ms", d)
	}
	// The vendor setting takes precedence and accepts duration strings.
	if err := s.Set(ContextSession, VendorStatementTimeout, "2s"); err != nil {
		t.Fatalf("Set vendor: %v", err)
	}
	if d := s.StatementTimeout(); d.Seconds() != 2 {
		t.Fatalf("StatementTimeout = %v, want 2s", d)
	}
}
