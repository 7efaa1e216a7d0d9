// Package kb implements korel's knowledge store: the Representation that
// owns Individuals and Categories, the cognition ("cog") index used to
// discover candidate rules, and the per-atom locking protocol ask uses to
// serialize assertions.
//
// Grounded on bklooste/simag's kblogic.py (Representation/Individual/
// Category/Relation, up_memb/up_rel/add_cog/save_rule/objs_by_ctg/
// test_pred) and on memstore.Store's RWMutex+map storage idiom,
// generalized here to per-atom fine-grained locks instead of memstore's
// single store-wide RWMutex.
package kb

import (
	"context"
	"sync"
	"time"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/bms"
	"github.com/cognicore/korel/pkg/korel/id"
	"github.com/cognicore/korel/pkg/korel/internalerr"
	"github.com/cognicore/korel/pkg/korel/sentence"
	"github.com/cognicore/korel/pkg/korel/store"
)

// LockTimeout bounds how long ask waits to acquire an atom lock before
// giving up (a bounded wait, default 5s).
var LockTimeout = 5 * time.Second

// Individual is a subject: an entity whose name conventionally begins
// with '$'. It holds its membership atoms, its relation atoms bucketed by
// function name, and the cog index of sentences that reference it.
type Individual struct {
	ID         string // stable opaque id, minted once at first reference
	Name       string
	Categories map[string]atom.Membership // category name -> membership atom
	Relations  map[string][]atom.Relation // func name -> atoms, keyed further by ArgsHash
	Cog        map[string][]*sentence.LogSentence
}

func newIndividual(name string) *Individual {
	return &Individual{
		ID:         id.New(),
		Name:       name,
		Categories: make(map[string]atom.Membership),
		Relations:  make(map[string][]atom.Relation),
		Cog:        make(map[string][]*sentence.LogSentence),
	}
}

// Category is a named class. IsRelation marks a category created for a
// relation name; UpMemb does not consult it, so a membership atom may
// still name a relation category as its parent. Category itself stores the
// sentences that reference it and, for relation categories, the full fact
// table.
type Category struct {
	Name       string
	IsRelation bool
	Cog        map[string][]*sentence.LogSentence // indexed by the atom's own key prefix, mirrors Individual.Cog
	Parents    []atom.Membership                  // category-of-category atoms
	// Facts holds every grounded relation atom filed directly under this
	// category, when IsRelation is true; bucketed by ArgsHash.
	Facts map[string]atom.Relation
}

func newCategory(name string, isRelation bool) *Category {
	return &Category{
		Name:       name,
		IsRelation: isRelation,
		Cog:        make(map[string][]*sentence.LogSentence),
		Facts:      make(map[string]atom.Relation),
	}
}

// atomLock serializes concurrent asserts/reads against one canonical atom
// key: an atom-level lock acquired during ask.
type atomLock struct {
	mu sync.Mutex
}

// Representation is korel's knowledge store: the authoritative map of
// names to Individuals/Categories, a BMS for provenance, and the lock
// table ask uses to serialize writes.
type Representation struct {
	mu          sync.RWMutex // guards the two maps below, not atom contents
	individuals map[string]*Individual
	categories  map[string]*Category

	locksMu sync.Mutex
	locks   map[string]*atomLock

	BMS *bms.BMS
}

// New creates an empty knowledge store.
func New() *Representation {
	return &Representation{
		individuals: make(map[string]*Individual),
		categories:  make(map[string]*Category),
		locks:       make(map[string]*atomLock),
		BMS:         bms.New(),
	}
}

var _ store.Store = (*Representation)(nil)

func ownerName(term string) bool { return len(term) > 0 && term[0] == '$' }

// membershipIdentity is a membership atom's value-independent identity:
// the same (category, subject) pair always yields the same string
// regardless of what value is currently asserted, so bms.BMS.Check can
// compare a re-assertion against whatever it last saw.
func membershipIdentity(m atom.Membership) string {
	return m.Parent + "[" + m.Term + "]"
}

// relationIdentity is a relation atom's value-independent identity.
func relationIdentity(rel atom.Relation) string {
	return rel.ArgsHash()
}

func (r *Representation) getOrCreateIndividual(name string) *Individual {
	r.mu.Lock()
	defer r.mu.Unlock()
	ind, ok := r.individuals[name]
	if !ok {
		ind = newIndividual(name)
		r.individuals[name] = ind
	}
	return ind
}

func (r *Representation) getOrCreateCategory(name string, isRelation bool) *Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	cat, ok := r.categories[name]
	if !ok {
		cat = newCategory(name, isRelation)
		r.categories[name] = cat
	}
	return cat
}

func (r *Representation) lockFor(key string) *atomLock {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &atomLock{}
		r.locks[key] = l
	}
	return l
}

// acquire takes the lock for key with a bounded wait, honoring ctx
// cancellation. Returns a release func that must be called on every exit
// path (scoped-acquisition pattern).
func (r *Representation) acquire(ctx context.Context, key string) (release func(), err error) {
	l := r.lockFor(key)
	done := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(done)
	}()
	select {
	case <-done:
		return func() { l.mu.Unlock() }, nil
	case <-time.After(LockTimeout):
		return func() {}, internalerr.ErrLockTimeout
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

// UpMemb resolves m's owner (Individual if Term is '$'-prefixed, else
// Category) and inserts-or-updates the membership atom in place, matching
// kblogic.py's up_memb. Creates the referenced Category if absent.
func (r *Representation) UpMemb(ctx context.Context, m atom.Membership) error {
	return r.upMemb(ctx, m, r.BMS)
}

// upMemb is UpMemb's body, parameterized over the provenance sink so an
// InferenceView can route a query's exploratory assertions through a
// per-query bms.Stub instead of the Representation's own BMS.
func (r *Representation) upMemb(ctx context.Context, m atom.Membership, sink bms.Sink) error {
	key := m.Key()
	release, err := r.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	r.getOrCreateCategory(m.Parent, false)
	now := time.Now().UTC()

	if ownerName(m.Term) {
		ind := r.getOrCreateIndividual(m.Term)
		if prev, had := ind.Categories[m.Parent]; had {
			consistent := atom.Consistent(prev.Value, prev.Op, m.Value)
			sink.Check(membershipIdentity(m), m.Value, consistent, now)
		}
		ind.Categories[m.Parent] = m
	} else {
		cat := r.getOrCreateCategory(m.Term, false)
		cat.Parents = append(cat.Parents, m)
	}
	sink.RecordSelf(key, membershipIdentity(m), m.Value, now)
	return nil
}

// UpRel resolves each argument's owner and files the relation atom,
// matching kblogic.py's up_rel: bucketed by func name, updated in place
// when an existing atom shares the same ArgsHash. Creates the relation
// Category if absent.
func (r *Representation) UpRel(ctx context.Context, rel atom.Relation) error {
	return r.upRel(ctx, rel, r.BMS)
}

// upRel is UpRel's body, parameterized over the provenance sink; see upMemb.
func (r *Representation) upRel(ctx context.Context, rel atom.Relation, sink bms.Sink) error {
	key := rel.Key()
	release, err := r.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	r.getOrCreateCategory(rel.Func, true)
	now := time.Now().UTC()

	hash := rel.ArgsHash()
	for _, a := range rel.Args {
		if !ownerName(a.Term) {
			continue
		}
		ind := r.getOrCreateIndividual(a.Term)
		bucket := ind.Relations[rel.Func]
		replaced := false
		for i, existing := range bucket {
			if existing.ArgsHash() == hash {
				if existing.Args[0].HasValue {
					consistent := atom.Consistent(existing.Args[0].Value, existing.Args[0].Op, rel.Args[0].Value)
					sink.Check(relationIdentity(rel), rel.Args[0].Value, consistent, now)
				}
				bucket[i] = rel
				replaced = true
				break
			}
		}
		if !replaced {
			bucket = append(bucket, rel)
		}
		ind.Relations[rel.Func] = bucket
	}

	catFacts := r.getOrCreateCategory(rel.Func, true)
	catFacts.Facts[rel.ArgsHash()] = rel
	sink.RecordSelf(key, relationIdentity(rel), rel.Args[0].Value, now)
	return nil
}

// AddCog indexes s under every predicate name it references: always on the
// Category, and additionally on the Individual when the predicate's term
// (a relation's first argument) is a '$'-prefixed constant, matching
// kblogic.py's add_cog.
func (r *Representation) AddCog(s *sentence.LogSentence) {
	preds := s.Predicates("")
	for _, p := range preds {
		var name, term string
		switch p.Kind {
		case sentence.MembershipPred:
			name, term = p.Membership.Parent, p.Membership.Term
		case sentence.RelationPred:
			name, term = p.Relation.Func, ""
			if len(p.Relation.Args) > 0 {
				term = p.Relation.Args[0].Term
			}
		default:
			continue
		}
		cat := r.getOrCreateCategory(name, p.Kind == sentence.RelationPred)
		r.mu.Lock()
		cat.Cog[name] = append(cat.Cog[name], s)
		r.mu.Unlock()

		if ownerName(term) {
			ind := r.getOrCreateIndividual(term)
			r.mu.Lock()
			ind.Cog[name] = append(ind.Cog[name], s)
			r.mu.Unlock()
		}
	}
}

// SaveRule indexes s under every atom name it references (via AddCog) and
// invokes runner once so the rule can be run forward immediately, matching
// kblogic.py's save_rule. runner is supplied by the facade (korel.go),
// which runs the rule through the same per-variable substitution
// machinery the inference engine uses for backward chaining, to avoid an
// import cycle between kb and inference/sentence evaluation drivers.
func (r *Representation) SaveRule(ctx context.Context, s *sentence.LogSentence, runner func() error) error {
	r.AddCog(s)
	if runner == nil {
		return nil
	}
	return runner()
}

// Kind selects which name→subject index ObjsByCtg scans. It is an alias of
// store.Kind so *Representation satisfies store.Store without a second,
// incompatible enum type.
type Kind = store.Kind

const (
	KindIndividuals = store.Individuals
	KindClasses     = store.Classes
)

// ObjsByCtg returns, for the given Kind, a map from subject name to the
// subset of names that subject is known to hold, matching kblogic.py's
// objs_by_ctg.
func (r *Representation) ObjsByCtg(names []string, kind Kind) map[string]map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]map[string]struct{})
	nameSet := make(map[string]struct{}, len(names))
	for _, n := range names {
		nameSet[n] = struct{}{}
	}

	switch kind {
	case KindIndividuals:
		for subj, ind := range r.individuals {
			for ctg := range ind.Categories {
				if _, ok := nameSet[ctg]; ok {
					addHit(out, subj, ctg)
				}
			}
			for fn := range ind.Relations {
				if _, ok := nameSet[fn]; ok {
					addHit(out, subj, fn)
				}
			}
		}
	case KindClasses:
		for name, cat := range r.categories {
			if _, ok := nameSet[name]; !ok {
				continue
			}
			for _, p := range cat.Parents {
				addHit(out, p.Term, name)
			}
		}
	}
	return out
}

func addHit(out map[string]map[string]struct{}, subj, name string) {
	set, ok := out[subj]
	if !ok {
		set = make(map[string]struct{})
		out[subj] = set
	}
	set[name] = struct{}{}
}

// TestMembership performs a direct lookup of the stored atom matching m's
// shape and applies m's comparator to it, returning {true, false, unknown}.
// It does not invoke inference.
func (r *Representation) TestMembership(m atom.Membership) (atom.Tri, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !ownerName(m.Term) {
		return atom.Unknown, nil
	}
	ind, ok := r.individuals[m.Term]
	if !ok {
		return atom.Unknown, nil
	}
	stored, ok := ind.Categories[m.Parent]
	if !ok {
		return atom.Unknown, nil
	}
	eq, err := m.Equal(stored)
	if err != nil {
		return atom.Unknown, nil //nolint:nilerr // shape mismatch reads as unknown to callers
	}
	return atom.FromBool(eq), nil
}

// TestRelation mirrors TestMembership for relation atoms.
func (r *Representation) TestRelation(rel atom.Relation) (atom.Tri, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cat, ok := r.categories[rel.Func]
	if !ok {
		return atom.Unknown, nil
	}
	stored, ok := cat.Facts[rel.ArgsHash()]
	if !ok {
		return atom.Unknown, nil
	}
	eq, err := rel.Equal(stored)
	if err != nil {
		return atom.Unknown, nil //nolint:nilerr
	}
	return atom.FromBool(eq), nil
}

// AssertMembership implements sentence.Store: it commits m via UpMemb and,
// when prov carries a non-nil rule Sentence, records the derivation in the
// BMS as FormDerived instead of FormSelf.
func (r *Representation) AssertMembership(m atom.Membership, prov sentence.Provenance) error {
	return r.assertMembership(m, prov, r.BMS)
}

func (r *Representation) assertMembership(m atom.Membership, prov sentence.Provenance, sink bms.Sink) error {
	commitSink := sink
	if prov.Sentence != nil {
		commitSink = derivedSink{sink}
	}
	if err := r.upMemb(context.Background(), m, commitSink); err != nil {
		return err
	}
	if prov.Sentence != nil {
		sink.RecordDerived(m.Key(), membershipIdentity(m), ruleName(prov.Sentence), prov.Contributing, m.Value, time.Now().UTC())
	}
	return nil
}

// AssertRelation mirrors AssertMembership for relation atoms.
func (r *Representation) AssertRelation(rel atom.Relation, prov sentence.Provenance) error {
	return r.assertRelation(rel, prov, r.BMS)
}

func (r *Representation) assertRelation(rel atom.Relation, prov sentence.Provenance, sink bms.Sink) error {
	commitSink := sink
	if prov.Sentence != nil {
		commitSink = derivedSink{sink}
	}
	if err := r.upRel(context.Background(), rel, commitSink); err != nil {
		return err
	}
	if prov.Sentence != nil {
		sink.RecordDerived(rel.Key(), relationIdentity(rel), ruleName(prov.Sentence), prov.Contributing, rel.Args[0].Value, time.Now().UTC())
	}
	return nil
}

// derivedSink forwards Check and RecordDerived to its Sink but drops
// RecordSelf, so a rule-derived assertion is filed once, as FormDerived.
type derivedSink struct{ bms.Sink }

func (derivedSink) RecordSelf(string, string, float64, time.Time) {}

// InferenceView is a sentence.Store over a Representation that commits
// facts directly (so a fixpoint search's later rounds see earlier rounds'
// derivations, the same as the live store) but buffers their BMS
// provenance into a Stub instead of writing through to the
// Representation's own BMS. A query that never reaches a kept result can
// simply drop its view; Promote is the only path that lets its derivation
// records reach the main belief log.
type InferenceView struct {
	rep  *Representation
	Stub *bms.Stub
}

// NewInferenceView creates a view over rep with a fresh Stub.
func NewInferenceView(rep *Representation) *InferenceView {
	return &InferenceView{rep: rep, Stub: bms.NewStub()}
}

var _ sentence.Store = (*InferenceView)(nil)

func (v *InferenceView) TestMembership(m atom.Membership) (atom.Tri, error) {
	return v.rep.TestMembership(m)
}

func (v *InferenceView) TestRelation(rel atom.Relation) (atom.Tri, error) {
	return v.rep.TestRelation(rel)
}

func (v *InferenceView) AssertMembership(m atom.Membership, prov sentence.Provenance) error {
	return v.rep.assertMembership(m, prov, v.Stub)
}

func (v *InferenceView) AssertRelation(rel atom.Relation, prov sentence.Provenance) error {
	return v.rep.assertRelation(rel, prov, v.Stub)
}

// Promote merges every buffered derivation record into the view's
// underlying Representation's BMS, in the order recorded. Call once a
// query has a result worth keeping; an abandoned or cancelled query can
// let its view go out of scope instead, leaving the main BMS untouched.
func (v *InferenceView) Promote() {
	v.Stub.Promote(v.rep.BMS)
}

// ruleName labels a derived belief with the consequent predicate it came
// from, falling back to the rule's own minted ID for a rule with no
// nameable consequent predicate (e.g. a pure time-comparison conclusion).
func ruleName(s *sentence.LogSentence) string {
	names := sentence.PredicateNames(s.Predicates("r"))
	if len(names) == 0 {
		return s.ID
	}
	return names[0]
}

// Individual returns a snapshot copy of the named individual, if known.
func (r *Representation) Individual(name string) (Individual, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ind, ok := r.individuals[name]
	if !ok {
		return Individual{}, false
	}
	return *ind, true
}

// Category returns a snapshot copy of the named category, if known.
func (r *Representation) Category(name string) (Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cat, ok := r.categories[name]
	if !ok {
		return Category{}, false
	}
	return *cat, true
}

// CogFor returns the sentences indexed under name across both Individuals
// and Categories, used by the inference engine's rule-discovery worklist.
func (r *Representation) CogFor(name string) []*sentence.LogSentence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*sentence.LogSentence
	if cat, ok := r.categories[name]; ok {
		out = append(out, cat.Cog[name]...)
	}
	for _, ind := range r.individuals {
		out = append(out, ind.Cog[name]...)
	}
	return out
}
