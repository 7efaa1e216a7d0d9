// Package prolog is an optional classical cross-check engine: it loads the
// crisp (u=1/u=0) subset of a korel knowledge base into a real Prolog
// interpreter and answers ground queries by provability, instead of the
// fuzzy backward-chaining inference/simple does. It exists to let a caller
// sanity-check a derived fact against plain two-valued logic, not to
// replace the fuzzy engine.
//
// Uses github.com/ichiban/prolog (previously only an indirect, unused
// dependency); the embedding style -- a thin Go wrapper translating a
// domain's own ground facts/rules into generated clause text and running
// them through prolog.Interpreter.Exec/Query -- follows the same
// adapter-around-a-foreign-engine shape used elsewhere for storage
// backends.
package prolog

import (
	"context"
	"fmt"
	"strings"

	"github.com/ichiban/prolog"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/internalerr"
	"github.com/cognicore/korel/pkg/korel/sentence"
)

// Engine wraps a prolog.Interpreter seeded with a knowledge base's crisp
// facts and rules. It is not safe for concurrent Load/Ask calls; callers
// serialize access the way they already must for a single interpreter.
type Engine struct {
	interp *prolog.Interpreter
	// negative tracks explicitly asserted u=0 facts, keyed by goal text,
	// so an absent fact can still be reported False instead of Unknown.
	negative map[string]struct{}
}

// New creates an Engine with a fresh, empty interpreter.
func New() *Engine {
	return &Engine{
		interp:   prolog.New(nil, nil),
		negative: make(map[string]struct{}),
	}
}

// LoadMembership seeds a single crisp membership fact. Non-crisp values
// (anything but u=0 or u=1 under Eq) are outside this engine's scope and
// are silently skipped -- the fuzzy engine remains authoritative for them.
func (e *Engine) LoadMembership(m atom.Membership) error {
	if m.Free || m.Op != atom.Eq {
		return nil
	}
	goal := membershipGoal(m.Parent, m.Term)
	switch m.Value {
	case 1:
		return e.interp.Exec(goal + ".")
	case 0:
		e.negative[goal] = struct{}{}
		return nil
	default:
		return nil
	}
}

// LoadRelation seeds a single crisp relation fact, keyed by its object
// argument's value/op the same way atom.Relation does.
func (e *Engine) LoadRelation(r atom.Relation) error {
	if len(r.Args) == 0 || !r.Args[0].HasValue || r.Args[0].Op != atom.Eq {
		return nil
	}
	goal := relationGoal(r.Func, r.Args)
	switch r.Args[0].Value {
	case 1:
		return e.interp.Exec(goal + ".")
	case 0:
		e.negative[goal] = struct{}{}
		return nil
	default:
		return nil
	}
}

// LoadRule seeds a Horn-clause rule: s must be a single indicative
// conditional whose left branch is a conjunction (or lone predicate) of
// membership/relation predicates and whose right branch is exactly one
// predicate. Rules outside this shape (disjunctive antecedents, negation,
// time comparisons) are rejected with internalerr.ErrInvalidInput -- this
// engine only cross-checks the classical core of the rule language.
func (e *Engine) LoadRule(s *sentence.LogSentence) error {
	if s == nil || s.Start == nil || s.Start.Cond != sentence.ICond || len(s.Start.Children) != 2 {
		return fmt.Errorf("%w: rule is not a single indicative conditional", internalerr.ErrInvalidInput)
	}
	var conjunctive func(p *sentence.Particle) bool
	conjunctive = func(p *sentence.Particle) bool {
		if p.Cond == sentence.Pred {
			return true
		}
		for _, c := range p.Children {
			if !conjunctive(c) {
				return false
			}
		}
		return p.Cond == sentence.And
	}
	if !conjunctive(s.Start.Children[0]) || s.Start.Children[1].Cond != sentence.Pred {
		return fmt.Errorf("%w: unsupported rule shape for classical cross-check", internalerr.ErrInvalidInput)
	}
	heads := s.Predicates("r")
	body := s.Predicates("l")
	if len(heads) != 1 || len(body) == 0 {
		return fmt.Errorf("%w: unsupported rule shape for classical cross-check", internalerr.ErrInvalidInput)
	}

	vars := make(map[string]struct{}, len(s.VarOrder))
	for _, v := range s.VarOrder {
		vars[v] = struct{}{}
	}

	headGoal, err := particleGoal(heads[0], vars)
	if err != nil {
		return err
	}
	bodyGoals := make([]string, 0, len(body))
	for _, p := range body {
		g, err := particleGoal(p, vars)
		if err != nil {
			return err
		}
		bodyGoals = append(bodyGoals, g)
	}

	clause := fmt.Sprintf("%s :- %s.", headGoal, strings.Join(bodyGoals, ", "))
	return e.interp.Exec(clause)
}

// AskMembership reports the classical truth of a grounded membership atom:
// True if provable, False if explicitly recorded as a u=0 fact, Unknown
// otherwise. m must be grounded (Free == false).
func (e *Engine) AskMembership(ctx context.Context, m atom.Membership) (atom.Tri, error) {
	if m.Free {
		return atom.Unknown, fmt.Errorf("%w: classical cross-check only answers grounded queries", internalerr.ErrInvalidInput)
	}
	return e.ask(ctx, membershipGoal(m.Parent, m.Term))
}

// AskRelation reports the classical truth of a grounded relation atom, the
// same way AskMembership does for memberships.
func (e *Engine) AskRelation(ctx context.Context, r atom.Relation) (atom.Tri, error) {
	for _, a := range r.Args {
		if a.Term == "" {
			return atom.Unknown, fmt.Errorf("%w: classical cross-check only answers grounded queries", internalerr.ErrInvalidInput)
		}
	}
	return e.ask(ctx, relationGoal(r.Func, r.Args))
}

func (e *Engine) ask(ctx context.Context, goal string) (atom.Tri, error) {
	if err := ctx.Err(); err != nil {
		return atom.Unknown, err
	}
	sols, err := e.interp.Query(goal + ".")
	if err != nil {
		return atom.Unknown, err
	}
	defer sols.Close()

	if sols.Next() {
		return atom.True, sols.Err()
	}
	if err := sols.Err(); err != nil {
		return atom.Unknown, err
	}
	if _, known := e.negative[goal]; known {
		return atom.False, nil
	}
	return atom.Unknown, nil
}

func membershipGoal(parent, term string) string {
	return fmt.Sprintf("%s(%s)", quoteAtom(parent), quoteAtom(stripSigil(term)))
}

func relationGoal(fn string, args []atom.RelArg) string {
	terms := make([]string, len(args))
	for i, a := range args {
		terms[i] = quoteAtom(stripSigil(a.Term))
	}
	return fmt.Sprintf("%s(%s)", quoteAtom(fn), strings.Join(terms, ","))
}

// particleGoal renders one leaf predicate as a Prolog goal, turning any
// term that is one of the rule's own variables into an uppercase Prolog
// variable and everything else into a quoted ground atom.
func particleGoal(p *sentence.Particle, vars map[string]struct{}) (string, error) {
	switch p.Kind {
	case sentence.MembershipPred:
		return fmt.Sprintf("%s(%s)", quoteAtom(p.Membership.Parent), termFor(p.Membership.Term, vars)), nil
	case sentence.RelationPred:
		terms := make([]string, len(p.Relation.Args))
		for i, a := range p.Relation.Args {
			terms[i] = termFor(a.Term, vars)
		}
		return fmt.Sprintf("%s(%s)", quoteAtom(p.Relation.Func), strings.Join(terms, ",")), nil
	default:
		return "", fmt.Errorf("%w: time-comparison predicates are outside the classical cross-check", internalerr.ErrInvalidInput)
	}
}

func termFor(term string, vars map[string]struct{}) string {
	if _, ok := vars[term]; ok {
		return prologVar(term)
	}
	return quoteAtom(stripSigil(term))
}

// prologVar upper-cases a korel rule variable's first rune so it parses as
// a Prolog variable, e.g. "x" -> "X".
func prologVar(v string) string {
	if v == "" {
		return "X"
	}
	return strings.ToUpper(v[:1]) + v[1:]
}

func stripSigil(term string) string {
	return strings.TrimPrefix(term, "$")
}

// quoteAtom wraps name in single quotes so it is a legal Prolog atom
// regardless of korel's own naming conventions (case, leading digits).
func quoteAtom(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "\\'") + "'"
}
