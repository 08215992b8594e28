package stmtcache

import "testing"

func TestParseDuplicateNamedStatementErrors(t *testing.T) {
	c := New()
	if err := c.Parse(&PreparedStatement{Name: "s1", SQL: "select 1"}); err != nil {
		t.Fatalf("first Parse: %v", err)
	}
	err := c.Parse(&PreparedStatement{Name: "s1", SQL: "select 2"})
	if err == nil {
		t.Fatal("expected duplicate-name error")
	}
}

func TestParseUnnamedAlwaysReplaceable(t *testing.T) {
	c := New()
	if err := c.Parse(&PreparedStatement{Name: "", SQL: "select 1"}); err != nil {
		t.Fatalf("first Parse: %v", err)
	}
	if err := c.Parse(&PreparedStatement{Name: "", SQL: "select 2"}); err != nil {
		t.Fatalf("second Parse: %v", err)
	}
	stmt, err := c.Statement("")
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	if stmt.SQL != "select 2" {
		t.Fatalf("Statement().SQL = %q, want %q", stmt.SQL, "select 2")
	}
}

func TestBindUnknownStatementErrors(t *testing.T) {
	c := New()
	_, err := c.Statement("missing")
	if err == nil {
		t.Fatal("expected error for unknown statement")
	}
}

func TestClosingStatementInvalidatesPortals(t *testing.T) {
	c := New()
	if err := c.Parse(&PreparedStatement{Name: "s1", SQL: "select 1"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt, _ := c.Statement("s1")
	c.Bind("p1", stmt, nil, nil, nil)

	if _, err := c.Portal("p1"); err != nil {
		t.Fatalf("Portal before close: %v", err)
	}

	c.CloseStatement("s1")

	if _, err := c.Portal("p1"); err == nil {
		t.Fatal("expected portal to be invalidated after statement close")
	}
}

func TestCloseAbsentIsNoOp(t *testing.T) {
	c := New()
	c.CloseStatement("nope")
	c.ClosePortal("nope")
}
