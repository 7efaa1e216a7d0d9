// Package sentence implements korel's logic-sentence tree: a LogSentence
// holds a tree of Particle nodes (connectives and leaf predicates) and can
// be evaluated in two modes, resolve (compute a truth value) and substitute
// (assert the right side into the store).
//
// Grounded on bklooste/simag's kblogic.py LogSentence/Particle, reworked as
// a visitor instead of the original's single state-machine method keyed on
// magic numbers (100/101/102/103): every connective has one resolve method
// and one substitute method, and Particle itself is a tagged variant
// (Connective | Predicate).
package sentence

import (
	"time"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/internalerr"
)

// Connective identifies the type of an interior node.
type Connective int

const (
	// Pred marks a leaf node (not a connective).
	Pred Connective = iota
	ICond          // |> indicative conditional
	Equiv          // <=>
	Implies        // =>
	And            // &&
	Or             // ||
)

func (c Connective) String() string {
	switch c {
	case ICond:
		return "|>"
	case Equiv:
		return "<=>"
	case Implies:
		return "=>"
	case And:
		return "&&"
	case Or:
		return "||"
	default:
		return "pred"
	}
}

// PredicateKind distinguishes the payload carried by a leaf Particle.
type PredicateKind int

const (
	MembershipPred PredicateKind = iota
	RelationPred
	TimePred
)

// Particle is one node of a sentence tree: either a connective with
// children, or a leaf predicate carrying an atom.
type Particle struct {
	Cond     Connective
	Children []*Particle
	Parent   *Particle

	// Leaf payload (valid iff Cond == Pred).
	Kind       PredicateKind
	Membership atom.Membership
	Relation   atom.Relation
	Time       atom.TimeCompare
}

// NewPredicate builds a leaf node from a membership atom.
func NewPredicate(m atom.Membership) *Particle {
	return &Particle{Cond: Pred, Kind: MembershipPred, Membership: m}
}

// NewRelationPredicate builds a leaf node from a relation atom.
func NewRelationPredicate(r atom.Relation) *Particle {
	return &Particle{Cond: Pred, Kind: RelationPred, Relation: r}
}

// NewTimePredicate builds a leaf node from a date-comparison atom.
func NewTimePredicate(d atom.TimeCompare) *Particle {
	return &Particle{Cond: Pred, Kind: TimePred, Time: d}
}

// NewConnective builds an interior node and wires up parent pointers.
func NewConnective(cond Connective, children ...*Particle) *Particle {
	p := &Particle{Cond: cond, Children: children}
	for _, c := range children {
		c.Parent = p
	}
	return p
}

// LogSentence is a parsed first-order logic sentence: a tree of Particles
// rooted at Start, an ordered variable list, optional type constraints on
// some variables, and bookkeeping for rule precedence.
type LogSentence struct {
	ID           string // opaque, lexically sortable; minted once at parse time
	Start        *Particle
	VarOrder     []string          // free variables, bound positionally at call time
	PreAssigned  map[string]string // type-constrained vars (e.g. "time") pre-bound
	Depth        int
	CreatedAt    time.Time // precedence: newer rules evaluated first
	SourceText   string    // original boundary-syntax text, for Explain/debugging
}

// Validate walks the tree and enforces the connective placement rule: an
// indicative conditional may not sit anywhere below a disjunction,
// implication, or equivalence, and none of those three may appear inside
// an indicative conditional's right-hand (consequent) branch. This is the
// concrete algorithm behind kblogic.py's LogSentence.get_ops, ported as an
// explicit tree walk instead of an iterator probe.
func (s *LogSentence) Validate() error {
	return validateNode(s.Start, false, false)
}

// validateNode returns an error if it or any descendant violates the
// placement rule. underICondRHS is true when we are currently inside the
// right-hand (consequent) branch of an enclosing indicative conditional;
// underDisj is true when a disjunction, implication, or equivalence
// encloses the current node.
func validateNode(p *Particle, underICondRHS, underDisj bool) error {
	if p == nil {
		return nil
	}
	switch p.Cond {
	case Or, Implies, Equiv:
		if underICondRHS {
			return internalerr.ErrIllegalConnective
		}
		for _, c := range p.Children {
			if err := validateNode(c, underICondRHS, true); err != nil {
				return err
			}
		}
	case ICond:
		if underDisj || len(p.Children) != 2 {
			return internalerr.ErrIllegalConnective
		}
		if err := validateNode(p.Children[0], underICondRHS, underDisj); err != nil {
			return err
		}
		if err := validateNode(p.Children[1], true, underDisj); err != nil {
			return err
		}
	case And:
		for _, c := range p.Children {
			if err := validateNode(c, underICondRHS, underDisj); err != nil {
				return err
			}
		}
	default:
		// leaf predicate, nothing to check
	}
	return nil
}

// Bindings is the per-call variable binding table. Two concurrent calls to
// the same sentence must not share bindings, so callers create a fresh
// Bindings per invocation rather than storing it on the sentence, unlike
// the original's self.assigned.
type Bindings struct {
	vars  map[string]string
	dates map[string]time.Time
}

// NewBindings assigns args positionally to VarOrder and merges any
// pre-assigned (type-constrained) variables.
func NewBindings(s *LogSentence, args []string) (*Bindings, error) {
	if len(args) != len(s.VarOrder) {
		return nil, internalerr.ErrInvalidInput
	}
	b := &Bindings{vars: make(map[string]string, len(args)+len(s.PreAssigned)), dates: map[string]time.Time{}}
	for i, a := range args {
		b.vars[s.VarOrder[i]] = a
	}
	for k, v := range s.PreAssigned {
		b.vars[k] = v
	}
	return b, nil
}

func (b *Bindings) resolve(term string) string {
	if b == nil {
		return term
	}
	if v, ok := b.vars[term]; ok {
		return v
	}
	return term
}

// applyMembership returns a grounded copy of a membership atom with its
// Term resolved through the bindings.
func (b *Bindings) applyMembership(m atom.Membership) atom.Membership {
	out := m
	out.Term = b.resolve(m.Term)
	out.Free = false
	return out
}

func (b *Bindings) applyRelation(r atom.Relation) atom.Relation {
	out := r
	out.Args = make([]atom.RelArg, len(r.Args))
	for i, a := range r.Args {
		a.Term = b.resolve(a.Term)
		out.Args[i] = a
	}
	return out
}

// Store is the minimal surface the sentence evaluator needs from the
// knowledge store: lookups for resolve, writes for substitute. kb.Representation
// implements this.
type Store interface {
	TestMembership(m atom.Membership) (atom.Tri, error)
	TestRelation(r atom.Relation) (atom.Tri, error)
	AssertMembership(m atom.Membership, source Provenance) error
	AssertRelation(r atom.Relation, source Provenance) error
}

// Provenance is threaded through substitute so the BMS can record which
// sentence (and which matched antecedent atom keys) produced an assertion.
// Kept here, not in package bms, to avoid an import cycle: bms depends on
// nothing, sentence depends on atom only, kb wires both together.
type Provenance struct {
	Sentence   *LogSentence
	Contributing []string // atom keys consulted while resolving the lhs
}

// SubstituteOutcome is the tri-valued result of a substitute pass. The
// original's substitute sometimes returned a bare false from deep inside
// the tree to mean three different things; here it's an explicit enum.
type SubstituteOutcome int

const (
	Committed SubstituteOutcome = iota
	SkippedByFalseLHS
	SubstituteUnknown
)

// Eval runs the sentence: if it starts with |>, forward/conditional mode
// (resolve lhs, substitute rhs on success); otherwise pure resolution.
func (s *LogSentence) Eval(store Store, args []string) (atom.Tri, []string, SubstituteOutcome, error) {
	b, err := NewBindings(s, args)
	if err != nil {
		return atom.Unknown, nil, SubstituteUnknown, err
	}
	var contributing []string
	if s.Start.Cond == ICond {
		lhs := s.Start.Children[0]
		truth, err := resolve(lhs, store, b, &contributing)
		if err != nil {
			return atom.Unknown, nil, SubstituteUnknown, err
		}
		if truth != atom.True {
			if truth == atom.False {
				return atom.False, nil, SkippedByFalseLHS, nil
			}
			return atom.Unknown, nil, SubstituteUnknown, nil
		}
		rhs := s.Start.Children[1]
		prov := Provenance{Sentence: s, Contributing: contributing}
		asserted, err := substitute(rhs, store, b, prov)
		if err != nil {
			return atom.Unknown, nil, SubstituteUnknown, err
		}
		return atom.True, asserted, Committed, nil
	}
	truth, err := resolve(s.Start, store, b, &contributing)
	if err != nil {
		return atom.Unknown, nil, SubstituteUnknown, err
	}
	return truth, nil, SubstituteUnknown, nil
}

// resolve computes a truth value for p, recording every atom key it
// consults into *contributing for BMS provenance.
func resolve(p *Particle, store Store, b *Bindings, contributing *[]string) (atom.Tri, error) {
	switch p.Cond {
	case Pred:
		return resolvePred(p, store, b, contributing)
	case And:
		result := atom.True
		for _, c := range p.Children {
			v, err := resolve(c, store, b, contributing)
			if err != nil {
				return atom.Unknown, err
			}
			if v == atom.False {
				return atom.False, nil
			}
			if v == atom.Unknown {
				result = atom.Unknown
			}
		}
		return result, nil
	case Or:
		result := atom.False
		for _, c := range p.Children {
			v, err := resolve(c, store, b, contributing)
			if err != nil {
				return atom.Unknown, err
			}
			if v == atom.True {
				return atom.True, nil
			}
			if v == atom.Unknown {
				result = atom.Unknown
			}
		}
		return result, nil
	case Implies:
		lhs, err := resolve(p.Children[0], store, b, contributing)
		if err != nil {
			return atom.Unknown, err
		}
		rhs, err := resolve(p.Children[1], store, b, contributing)
		if err != nil {
			return atom.Unknown, err
		}
		if lhs == atom.Unknown || rhs == atom.Unknown {
			return atom.Unknown, nil
		}
		if lhs == atom.True && rhs == atom.False {
			return atom.False, nil
		}
		return atom.True, nil
	case Equiv:
		lhs, err := resolve(p.Children[0], store, b, contributing)
		if err != nil {
			return atom.Unknown, err
		}
		rhs, err := resolve(p.Children[1], store, b, contributing)
		if err != nil {
			return atom.Unknown, err
		}
		if lhs == atom.Unknown || rhs == atom.Unknown {
			return atom.Unknown, nil
		}
		return atom.FromBool(lhs == rhs), nil
	case ICond:
		// resolve(lhs) is the call's truth; when it is true the right side
		// is substituted as a side effect, with no rule named in its
		// provenance.
		lhs, err := resolve(p.Children[0], store, b, contributing)
		if err != nil {
			return atom.Unknown, err
		}
		if lhs != atom.True {
			return lhs, nil
		}
		prov := Provenance{Sentence: nil, Contributing: append([]string(nil), *contributing...)}
		if _, err := substitute(p.Children[1], store, b, prov); err != nil {
			return atom.Unknown, err
		}
		return atom.True, nil
	default:
		return atom.Unknown, internalerr.ErrInvalidInput
	}
}

// EvalPredicate resolves a single leaf particle's truth value under b,
// without threading a contributing-atoms trail through it. Used by callers
// that need one predicate's own answer rather than a whole sentence's --
// an unbound query reporting a per-subject, per-atom-name breakdown.
func EvalPredicate(p *Particle, store Store, b *Bindings) (atom.Tri, error) {
	var contributing []string
	return resolvePred(p, store, b, &contributing)
}

func resolvePred(p *Particle, store Store, b *Bindings, contributing *[]string) (atom.Tri, error) {
	switch p.Kind {
	case MembershipPred:
		grounded := b.applyMembership(p.Membership)
		v, err := store.TestMembership(grounded)
		if err != nil {
			return atom.Unknown, err
		}
		if v == atom.True {
			*contributing = append(*contributing, grounded.Key())
		}
		return v, nil
	case RelationPred:
		grounded := b.applyRelation(p.Relation)
		v, err := store.TestRelation(grounded)
		if err != nil {
			return atom.Unknown, err
		}
		if v == atom.True {
			*contributing = append(*contributing, grounded.Key())
		}
		return v, nil
	case TimePred:
		bound := map[string]time.Time{}
		if b != nil {
			for k, t := range b.dates {
				bound[k] = t
			}
		}
		return p.Time.Resolve(bound), nil
	default:
		return atom.Unknown, internalerr.ErrInvalidInput
	}
}

// substitute asserts the right side into the store. && substitutes every
// child; || is illegal on the right side of |> and returns an error if
// reached here.
func substitute(p *Particle, store Store, b *Bindings, prov Provenance) ([]string, error) {
	switch p.Cond {
	case Pred:
		return substitutePred(p, store, b, prov)
	case And:
		var all []string
		for _, c := range p.Children {
			keys, err := substitute(c, store, b, prov)
			if err != nil {
				return nil, err
			}
			all = append(all, keys...)
		}
		return all, nil
	case Or, Implies, Equiv, ICond:
		return nil, internalerr.ErrIllegalConnective
	default:
		return nil, internalerr.ErrInvalidInput
	}
}

func substitutePred(p *Particle, store Store, b *Bindings, prov Provenance) ([]string, error) {
	switch p.Kind {
	case MembershipPred:
		grounded := b.applyMembership(p.Membership)
		if err := store.AssertMembership(grounded, prov); err != nil {
			return nil, err
		}
		return []string{grounded.Key()}, nil
	case RelationPred:
		grounded := b.applyRelation(p.Relation)
		if err := store.AssertRelation(grounded, prov); err != nil {
			return nil, err
		}
		return []string{grounded.Key()}, nil
	default:
		return nil, internalerr.ErrInvalidInput
	}
}

// Predicates walks the tree and returns every leaf Particle, optionally
// restricted to one branch of the root's top connective ("l" or "r"),
// matching kblogic.py LogSentence.get_pred. Used by the knowledge store's
// add_cog/save_rule to discover which category/relation names a sentence
// references, and by the inference engine to build InferNodes.
func (s *LogSentence) Predicates(branch string) []*Particle {
	var all []*Particle
	collectPreds(s.Start, &all)
	if branch == "" || s.Start.Cond == Pred {
		return all
	}
	var out []*Particle
	for _, p := range all {
		if onBranch(p, s.Start, branch) {
			out = append(out, p)
		}
	}
	return out
}

func collectPreds(p *Particle, out *[]*Particle) {
	if p == nil {
		return
	}
	if p.Cond == Pred {
		*out = append(*out, p)
		return
	}
	for _, c := range p.Children {
		collectPreds(c, out)
	}
}

// onBranch walks up from p to root and reports whether, at the point it
// meets root, it came down root's left (index 0) or right (index 1) child,
// matching "l"/"r" semantics of get_pred.
func onBranch(p, root *Particle, branch string) bool {
	x := p
	for x.Parent != nil && x.Parent != root {
		x = x.Parent
	}
	if x.Parent != root {
		return false
	}
	if len(root.Children) < 2 {
		return branch == "l"
	}
	if branch == "l" {
		return x == root.Children[0]
	}
	return x == root.Children[1]
}

// PredicateNames returns the category/relation names referenced by the
// given leaf particles, used to populate the cog index and InferNode.
func PredicateNames(preds []*Particle) []string {
	names := make([]string, 0, len(preds))
	for _, p := range preds {
		switch p.Kind {
		case MembershipPred:
			names = append(names, p.Membership.Parent)
		case RelationPred:
			names = append(names, p.Relation.Func)
		}
	}
	return names
}
