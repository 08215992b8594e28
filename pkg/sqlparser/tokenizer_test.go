package sqlparser

import (
	"reflect"
	"testing"
)

func TestSplitStatementsUnquotedSemicolons(t *testing.T) {
	got := SplitStatements("select 1; select 2; ")
	want := []string{"select 1", "select 2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitStatements = %#v, want %#v", got, want)
	}
}

func TestSplitStatementsIgnoresQuotedSemicolons(t *testing.T) {
	got := SplitStatements(`select ';' from foo; select "a;b" from bar`)
	want := []string{`select ';' from foo`, `select "a;b" from bar`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitStatements = %#v, want %#v", got, want)
	}
}

func TestSplitStatementsDollarQuoted(t *testing.T) {
	got := SplitStatements(`select $tag$a;b$tag$ as x; select 2`)
	want := []string{`select $tag$a;b$tag$ as x`, `select 2`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitStatements = %#v, want %#v", got, want)
	}
}

func TestQuotedIdentifierPreservesCase(t *testing.T) {
	tokens := tokenize(`SELECT "MixedCase" FROM t`)
	var quoted string
	for _, tok := range tokens {
		if tok.Kind == TokenQuotedIdentifier {
			quoted = tok.Text
		}
	}
	if quoted != "MixedCase" {
		t.Fatalf("quoted identifier = %q, want %q", quoted, "MixedCase")
	}
}

func TestUnquotedIdentifierFoldsLowercase(t *testing.T) {
	tokens := tokenize(`SELECT Foo FROM Bar`)
	var names []string
	for _, tok := range tokens {
		if tok.Kind == TokenIdentifier {
			names = append(names, tok.Text)
		}
	}
	want := []string{"select", "foo", "from", "bar"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("identifiers = %#v, want %#v", names, want)
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]StatementKind{
		"select 1":                      KindQuery,
		"insert into t values (1)":      KindDML,
		"update t set x = 1":            KindDML,
		"delete from t":                 KindDML,
		"create table t (id int)":       KindDDL,
		"drop table t":                  KindDDL,
		"alter table t add column x int": KindDDL,
		"copy t from stdin":             KindCopy,
		"begin":                         KindBegin,
		"commit":                        KindCommit,
		"rollback":                      KindRollback,
		"show time zone":                KindShow,
		"set time zone 'UTC'":           KindSet,
		"deallocate foo":                KindClientSide,
	}
	for sql, want := range cases {
		if got := Classify(sql); got != want {
			t.Errorf("Classify(%q) = %v, want %v", sql, got, want)
		}
	}
}

func TestNestedBlockComments(t *testing.T) {
	tokens := tokenize("/* outer /* inner */ still-outer */ select 1")
	if tokens[0].Kind != TokenBlockComment {
		t.Fatalf("first token kind = %v, want TokenBlockComment", tokens[0].Kind)
	}
}
