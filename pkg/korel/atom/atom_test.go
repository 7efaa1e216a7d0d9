package atom

import (
	"errors"
	"testing"
	"time"

	"github.com/cognicore/korel/pkg/korel/internalerr"
)

func TestNewMembershipRejectsOutOfRange(t *testing.T) {
	if _, err := NewMembership("professor", "$Lucy", 1.2, Eq); !errors.Is(err, internalerr.ErrValueRange) {
		t.Fatalf("expected ErrValueRange, got %v", err)
	}
	if _, err := NewMembership("professor", "$Lucy", -0.1, Eq); !errors.Is(err, internalerr.ErrValueRange) {
		t.Fatalf("expected ErrValueRange, got %v", err)
	}
}

func TestMembershipEqual(t *testing.T) {
	stored, _ := NewMembership("professor", "$Lucy", 1.0, Eq)
	query, _ := NewMembership("professor", "$Lucy", 1.0, Eq)
	ok, err := query.Equal(stored)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected equal atoms to match")
	}
}

func TestMembershipEqualShapeMismatch(t *testing.T) {
	stored, _ := NewMembership("professor", "$Lucy", 1.0, Eq)
	query, _ := NewMembership("person", "$Lucy", 1.0, Eq)
	if _, err := query.Equal(stored); !errors.Is(err, internalerr.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestMembershipEqualComparators(t *testing.T) {
	stored, _ := NewMembership("cold", "$Water", 0.9, Eq)

	gt, _ := NewMembership("cold", "$Water", 0.5, Gt)
	if ok, _ := gt.Equal(stored); !ok {
		t.Fatal("expected stored(0.9) > 0.5 to hold")
	}

	lt, _ := NewMembership("cold", "$Water", 0.95, Lt)
	if ok, _ := lt.Equal(stored); !ok {
		t.Fatal("expected stored(0.9) < 0.95 to hold")
	}
}

func TestCurrentlyTrueParity(t *testing.T) {
	if !CurrentlyTrue(nil) {
		t.Fatal("no dates should mean always currently valid")
	}
	now := time.Now()
	if CurrentlyTrue([]time.Time{now}) != true {
		t.Fatal("odd number of dates should mean currently true")
	}
	if CurrentlyTrue([]time.Time{now, now.Add(time.Hour)}) != false {
		t.Fatal("even number of dates should mean currently false")
	}
}

func TestRelationEqualArityMismatch(t *testing.T) {
	r1, _ := NewRelation("friend", []RelArg{{Term: "$John", HasValue: true, Value: 1, Op: Eq}, {Term: "$Lucy"}})
	r2, _ := NewRelation("friend", []RelArg{{Term: "$John", HasValue: true, Value: 1, Op: Eq}})
	if _, err := r1.Equal(r2); !errors.Is(err, internalerr.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestRelationEqualValueMismatch(t *testing.T) {
	stored, _ := NewRelation("friend", []RelArg{{Term: "$John", HasValue: true, Value: 1, Op: Eq}, {Term: "$Lucy"}})
	query, _ := NewRelation("friend", []RelArg{{Term: "$John", HasValue: true, Value: 0, Op: Eq}, {Term: "$Lucy"}})
	ok, err := query.Equal(stored)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected value mismatch (1 vs 0) to be unequal")
	}
}

func TestRelationArgsHashIdentity(t *testing.T) {
	r1, _ := NewRelation("friend", []RelArg{{Term: "$John"}, {Term: "$Lucy"}})
	r2, _ := NewRelation("friend", []RelArg{{Term: "$John", HasValue: true, Value: 0.5, Op: Eq}, {Term: "$Lucy"}})
	if r1.ArgsHash() != r2.ArgsHash() {
		t.Fatal("args hash should ignore value/op, only identity")
	}
}

func TestRelationSubstitute(t *testing.T) {
	r, _ := NewRelation("friend", []RelArg{{Term: "X", HasValue: true, Value: 1, Op: Eq}, {Term: "Y"}})
	s := r.Substitute(map[string]string{"X": "$John", "Y": "$Lucy"})
	if s.Args[0].Term != "$John" || s.Args[1].Term != "$Lucy" {
		t.Fatalf("unexpected substitution: %+v", s.Args)
	}
	// original must be untouched
	if r.Args[0].Term != "X" {
		t.Fatal("substitute mutated receiver")
	}
}

func TestTimeCompareDefersOnUnboundVar(t *testing.T) {
	tc := TimeCompare{Left: "t1", Right: "t2", Op: Lt}
	if got := tc.Resolve(map[string]time.Time{}); got != Unknown {
		t.Fatalf("expected Unknown for unbound vars, got %v", got)
	}
	now := time.Now()
	bound := map[string]time.Time{"t1": now, "t2": now.Add(time.Hour)}
	if got := tc.Resolve(bound); got != True {
		t.Fatalf("expected True, got %v", got)
	}
}

func TestMembershipKeyFormat(t *testing.T) {
	m, _ := NewMembership("professor", "$Lucy", 1, Eq)
	want := "professor[$Lucy,u=1]"
	if got := m.Key(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
