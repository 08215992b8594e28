package backend

import (
	"context"
	"testing"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/sqlparser"
)

func TestFakeSatisfiesExistenceChecker(t *testing.T) {
	f := NewFake()
	f.Tables["foo"] = true

	var checker sqlparser.ExistenceChecker = f
	exists, err := checker.TableExists("foo")
	if err != nil {
		t.Fatalf("TableExists: %v", err)
	}
	if !exists {
		t.Fatal("expected foo to exist")
	}
}

func TestFakeBufferAndApplyMutations(t *testing.T) {
	f := NewFake()
	f.BufferMutation(Mutation{Kind: MutationInsertOrUpdate, Table: "k", Columns: []string{"id", "v"}, Values: []any{int64(1), "one"}})
	f.BufferMutation(Mutation{Kind: MutationInsertOrUpdate, Table: "k", Columns: []string{"id", "v"}, Values: []any{int64(2), "two"}})

	if err := f.FlushMutations(context.Background()); err != nil {
		t.Fatalf("FlushMutations: %v", err)
	}
	if len(f.Mutations) != 2 {
		t.Fatalf("len(Mutations) = %d, want 2", len(f.Mutations))
	}
}

func TestFakeExecDDLTracksStatements(t *testing.T) {
	f := NewFake()
	if _, err := f.ApplyDDL(context.Background(), "create table foo (id bigint primary key)"); err != nil {
		t.Fatalf("ApplyDDL: %v", err)
	}
	if len(f.ExecutedDDL) != 1 {
		t.Fatalf("len(ExecutedDDL) = %d, want 1", len(f.ExecutedDDL))
	}
}

func TestFakeCancel(t *testing.T) {
	f := NewFake()
	f.Cancel()
	if !f.Canceled {
		t.Fatal("expected Canceled to be true")
	}
}
