package sentence

import (
	"errors"
	"testing"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/internalerr"
)

// fakeStore is a minimal in-memory Store for exercising the evaluator
// without pulling in package kb.
type fakeStore struct {
	membership map[string]atom.Membership
	relation   map[string]atom.Relation
	asserted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{membership: map[string]atom.Membership{}, relation: map[string]atom.Relation{}}
}

func (s *fakeStore) TestMembership(m atom.Membership) (atom.Tri, error) {
	stored, ok := s.membership[m.Parent+"|"+m.Term]
	if !ok {
		return atom.Unknown, nil
	}
	ok2, err := m.Equal(stored)
	if err != nil {
		return atom.Unknown, nil
	}
	return atom.FromBool(ok2), nil
}

func (s *fakeStore) TestRelation(r atom.Relation) (atom.Tri, error) {
	stored, ok := s.relation[r.ArgsHash()]
	if !ok {
		return atom.Unknown, nil
	}
	ok2, err := r.Equal(stored)
	if err != nil {
		return atom.Unknown, nil
	}
	return atom.FromBool(ok2), nil
}

func (s *fakeStore) AssertMembership(m atom.Membership, _ Provenance) error {
	s.membership[m.Parent+"|"+m.Term] = m
	s.asserted = append(s.asserted, m.Key())
	return nil
}

func (s *fakeStore) AssertRelation(r atom.Relation, _ Provenance) error {
	s.relation[r.ArgsHash()] = r
	s.asserted = append(s.asserted, r.Key())
	return nil
}

func professorPred(term string) *Particle {
	m, _ := atom.NewMembership("professor", term, 1, atom.Eq)
	m.Free = term[0] != '$'
	return NewPredicate(m)
}

func personPred(term string) *Particle {
	m, _ := atom.NewMembership("person", term, 1, atom.Eq)
	m.Free = term[0] != '$'
	return NewPredicate(m)
}

func TestResolvePlainConjunction(t *testing.T) {
	store := newFakeStore()
	lucy, _ := atom.NewMembership("professor", "$Lucy", 1, atom.Eq)
	store.membership["professor|$Lucy"] = lucy
	person, _ := atom.NewMembership("person", "$Lucy", 1, atom.Eq)
	store.membership["person|$Lucy"] = person

	s := &LogSentence{
		Start:    NewConnective(And, professorPred("$Lucy"), personPred("$Lucy")),
		VarOrder: nil,
	}
	truth, _, _, err := s.Eval(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if truth != atom.True {
		t.Fatalf("expected True, got %v", truth)
	}
}

func TestResolveUnknownOnMissingFact(t *testing.T) {
	store := newFakeStore()
	s := &LogSentence{Start: professorPred("$Nobody")}
	truth, _, _, err := s.Eval(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if truth != atom.Unknown {
		t.Fatalf("expected Unknown, got %v", truth)
	}
}

func TestIndicativeConditionalSubstitutesOnTrueLHS(t *testing.T) {
	store := newFakeStore()
	prof, _ := atom.NewMembership("professor", "$Lucy", 1, atom.Eq)
	store.membership["professor|$Lucy"] = prof

	rhs, _ := atom.NewMembership("person", "x", 1, atom.Eq)
	rhs.Free = true
	s := &LogSentence{
		Start:    NewConnective(ICond, professorPred("x"), NewPredicate(rhs)),
		VarOrder: []string{"x"},
	}
	truth, asserted, outcome, err := s.Eval(store, []string{"$Lucy"})
	if err != nil {
		t.Fatal(err)
	}
	if truth != atom.True {
		t.Fatalf("expected True, got %v", truth)
	}
	if outcome != Committed {
		t.Fatalf("expected Committed, got %v", outcome)
	}
	if len(asserted) != 1 {
		t.Fatalf("expected one assertion, got %v", asserted)
	}
	got, ok := store.membership["person|$Lucy"]
	if !ok {
		t.Fatal("expected person fact to be asserted")
	}
	if got.Value != 1 {
		t.Fatalf("unexpected asserted value: %v", got)
	}
}

func TestIndicativeConditionalSkipsOnFalseLHS(t *testing.T) {
	store := newFakeStore()
	prof, _ := atom.NewMembership("professor", "$Lucy", 1, atom.Eq)
	store.membership["professor|$Lucy"] = prof

	badLHS, _ := atom.NewMembership("professor", "x", 0, atom.Eq)
	badLHS.Free = true

	rhs, _ := atom.NewMembership("person", "x", 1, atom.Eq)
	rhs.Free = true

	s := &LogSentence{
		Start:    NewConnective(ICond, NewPredicate(badLHS), NewPredicate(rhs)),
		VarOrder: []string{"x"},
	}
	truth, _, outcome, err := s.Eval(store, []string{"$Lucy"})
	if err != nil {
		t.Fatal(err)
	}
	if truth != atom.False {
		t.Fatalf("expected False, got %v", truth)
	}
	if outcome != SkippedByFalseLHS {
		t.Fatalf("expected SkippedByFalseLHS, got %v", outcome)
	}
	if len(store.asserted) != 0 {
		t.Fatalf("expected no assertion, got %v", store.asserted)
	}
}

func TestValidateRejectsDisjunctionAboveIndicative(t *testing.T) {
	inner := NewConnective(ICond, professorPred("x"), personPred("x"))
	outer := NewConnective(Or, inner, professorPred("y"))
	s := &LogSentence{Start: outer}
	if err := s.Validate(); !errors.Is(err, internalerr.ErrIllegalConnective) {
		t.Fatalf("expected ErrIllegalConnective, got %v", err)
	}
}

func TestValidateAcceptsConjunctionAboveIndicative(t *testing.T) {
	inner := NewConnective(ICond, professorPred("x"), personPred("x"))
	outer := NewConnective(And, inner, professorPred("y"))
	s := &LogSentence{Start: outer}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestPredicateNamesFromBranch(t *testing.T) {
	lhs := NewConnective(And, professorPred("x"), personPred("x"))
	rhs := personPred("y")
	root := NewConnective(ICond, lhs, rhs)
	s := &LogSentence{Start: root}

	left := s.Predicates("l")
	names := PredicateNames(left)
	if len(names) != 2 {
		t.Fatalf("expected 2 lhs predicates, got %v", names)
	}

	right := s.Predicates("r")
	rightNames := PredicateNames(right)
	if len(rightNames) != 1 || rightNames[0] != "person" {
		t.Fatalf("expected [person], got %v", rightNames)
	}
}

func TestNewBindingsArgCountMismatch(t *testing.T) {
	s := &LogSentence{Start: professorPred("x"), VarOrder: []string{"x", "y"}}
	if _, err := NewBindings(s, []string{"$Lucy"}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRelationResolveAndSubstitute(t *testing.T) {
	store := newFakeStore()
	friend, _ := atom.NewRelation("friend", []atom.RelArg{
		{Term: "$John", HasValue: true, Value: 1, Op: atom.Eq},
		{Term: "$Lucy"},
	})
	store.relation[friend.ArgsHash()] = friend

	query, _ := atom.NewRelation("friend", []atom.RelArg{
		{Term: "$John", HasValue: true, Value: 1, Op: atom.Eq},
		{Term: "$Lucy"},
	})
	s := &LogSentence{Start: NewRelationPredicate(query)}
	truth, _, _, err := s.Eval(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if truth != atom.True {
		t.Fatalf("expected True, got %v", truth)
	}
}
