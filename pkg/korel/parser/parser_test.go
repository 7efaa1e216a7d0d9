package parser

import (
	"testing"

	"github.com/cognicore/korel/pkg/korel/sentence"
)

func TestParseGroundedMembership(t *testing.T) {
	batch, err := Parse("professor[$Lucy,u=1]")
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Memberships) != 1 {
		t.Fatalf("expected 1 membership, got %+v", batch)
	}
	m := batch.Memberships[0]
	if m.Parent != "professor" || m.Term != "$Lucy" || m.Value != 1 || m.Free {
		t.Fatalf("unexpected atom: %+v", m)
	}
}

func TestParseRelationLiteral(t *testing.T) {
	batch, err := Parse("<friend[$John,u=1;$Lucy]>")
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Relations) != 1 {
		t.Fatalf("expected 1 relation, got %+v", batch)
	}
	r := batch.Relations[0]
	if r.Func != "friend" || len(r.Args) != 2 || r.Args[0].Term != "$John" || r.Args[1].Term != "$Lucy" {
		t.Fatalf("unexpected relation: %+v", r)
	}
	if !r.Args[0].HasValue || r.Args[0].Value != 1 {
		t.Fatalf("expected obj arg to carry value 1, got %+v", r.Args[0])
	}
}

func TestParseQuantifiedRule(t *testing.T) {
	batch, err := Parse(":vars:x:(professor[x,u=1] |> person[x,u=1])")
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %+v", batch)
	}
	s := batch.Rules[0]
	if len(s.VarOrder) != 1 || s.VarOrder[0] != "x" {
		t.Fatalf("unexpected var order: %v", s.VarOrder)
	}
	if s.Start.Cond != sentence.ICond {
		t.Fatalf("expected top connective ICond, got %v", s.Start.Cond)
	}
}

func TestParseConjunctionRule(t *testing.T) {
	batch, err := Parse(":vars:x:(bird[x,u=1] && hasWings[x,u=1] |> flies[x,u=1])")
	if err != nil {
		t.Fatal(err)
	}
	s := batch.Rules[0]
	if s.Start.Cond != sentence.ICond {
		t.Fatalf("expected ICond root, got %v", s.Start.Cond)
	}
	lhs := s.Start.Children[0]
	if lhs.Cond != sentence.And {
		t.Fatalf("expected And lhs, got %v", lhs.Cond)
	}
	if len(lhs.Children) != 2 {
		t.Fatalf("expected 2 conjuncts, got %d", len(lhs.Children))
	}
}

func TestParseQueryBareAtom(t *testing.T) {
	q, err := ParseQuery("professor[$Lucy,u=1]")
	if err != nil {
		t.Fatal(err)
	}
	if q.Sentence == nil || q.Sentence.Start.Kind != sentence.MembershipPred {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestParseQuantifiedQuery(t *testing.T) {
	q, err := ParseQuery(":vars:x:(animal[x,u=1])")
	if err != nil {
		t.Fatal(err)
	}
	if len(q.VarOrder) != 1 || q.VarOrder[0] != "x" {
		t.Fatalf("unexpected var order: %v", q.VarOrder)
	}
}

func TestParseEmptyInputRejected(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected an error for empty input")
	}
}

func TestParseOutOfRangeValueRejected(t *testing.T) {
	if _, err := Parse("professor[$Lucy,u=1.5]"); err == nil {
		t.Fatal("expected an error for out-of-range value")
	}
}
