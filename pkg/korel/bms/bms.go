// Package bms implements korel's Belief Maintenance System: a per-atom
// provenance log that records how a belief came to exist (directly
// asserted or derived from a rule) and flags value inconsistencies when a
// new assertion contradicts a stored one.
//
// Grounded on bklooste/simag's bms.py (BmsWrapper/WrappDecl/BeliefRecord/
// chk_const), generalized from its two hardcoded predicate shapes
// (membership/relation tuple unpacking) to the tagged atom.Membership/
// atom.Relation types, and from its single global agent container to a
// struct any kb.Representation can own one of.
package bms

import (
	"fmt"
	"sync"
	"time"
)

// Form identifies how a belief entered the store.
type Form string

const (
	// FormSelf marks a directly asserted belief (tell/substitute of a
	// ground fact with no antecedent chain).
	FormSelf Form = "SELF"
	// FormDerived marks a belief produced by a rule firing during
	// inference; Record.Rule names the consequent sentence.
	FormDerived Form = "DERIVED"
)

// Record is one entry of an atom's belief history, matching bms.py's
// {'form', 'prev', 'date'} dict.
type Record struct {
	Form Form
	Prev *Record   // previous belief for the same key, nil if none
	Date time.Time // UTC
	Rule string    // consequent name, set when Form == FormDerived
	// Contributing lists the antecedent atom keys consulted to derive
	// this belief, for explain/debugging; empty for FormSelf.
	Contributing []string
}

// Inconsistency describes a detected contradiction between a new value and
// the value already on file for the same atom key, matching bms.py's
// check()'s printed "INCONSISTENCY" diagnostic. korel surfaces these as
// data, not side-effecting reverts: chk_const is reporting-only here.
type Inconsistency struct {
	Key        string
	StoredVal  float64
	NewVal     float64
	DetectedAt time.Time
}

func (i Inconsistency) Error() string {
	return fmt.Sprintf("bms: inconsistency on %s: stored=%v new=%v", i.Key, i.StoredVal, i.NewVal)
}

// Sink is the provenance-recording surface a knowledge store writes
// through while committing a fact: both *BMS itself and Stub (a buffered
// stand-in used during inference) implement it.
type Sink interface {
	RecordSelf(key, identity string, value float64, now time.Time)
	RecordDerived(key, identity, rule string, contributing []string, value float64, now time.Time)
	Check(identity string, newVal float64, consistent bool, now time.Time) (Inconsistency, bool)
}

// BMS tracks provenance per canonical atom key. One BMS is owned by a
// single Representation; all methods are safe for concurrent use.
//
// container is keyed by the full per-value atom key (e.g.
// "cold[$Water,u=0.9]"), matching the Contributing entries sentence.resolve
// records, so ChkConst's provenance-chain walk can look antecedents up
// directly. lastValue is keyed by the value-independent identity of the
// same atom (e.g. "cold[$Water]") instead: a contradictory re-assertion
// changes the atom's full key, so Check must compare against identity, not
// against the key a Record chain is filed under.
type BMS struct {
	mu        sync.Mutex
	container map[string]*Record
	lastValue map[string]float64
	incons    []Inconsistency
}

// New creates an empty BMS.
func New() *BMS {
	return &BMS{
		container: make(map[string]*Record),
		lastValue: make(map[string]float64),
	}
}

// RecordSelf logs a direct assertion for key, matching WrappDecl.remake.
// identity is the atom's value-independent identity, used to keep
// lastValue comparable across a changed value; pass key again if the two
// happen to coincide (callers with no notion of identity beyond key).
func (b *BMS) RecordSelf(key, identity string, value float64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.container[key]
	b.container[key] = &Record{Form: FormSelf, Prev: prev, Date: now}
	b.lastValue[identity] = value
}

// RecordDerived logs a belief produced by rule firing while resolving
// antecedents. contributing is the set of atom keys the rule consulted.
func (b *BMS) RecordDerived(key, identity, rule string, contributing []string, value float64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.container[key]
	b.container[key] = &Record{
		Form:         FormDerived,
		Prev:         prev,
		Date:         now,
		Rule:         rule,
		Contributing: append([]string(nil), contributing...),
	}
	b.lastValue[identity] = value
}

// Check compares newVal against whatever value is already on file for
// identity (if any) and reports an Inconsistency when they differ and the
// stored comparator does not already explain the difference (e.g. a '>'
// bound that newVal still satisfies). Matches bms.py check()'s comparison
// logic, generalized to take the comparator explicitly instead of
// re-deriving it from string parsing.
//
// consistent should be the result of atom.Consistent(stored, storedOp,
// newVal); Check only records the diagnostic, it never blocks or reverts
// the assertion.
func (b *BMS) Check(identity string, newVal float64, consistent bool, now time.Time) (Inconsistency, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored, had := b.lastValue[identity]
	if !had || stored == newVal || consistent {
		return Inconsistency{}, false
	}
	inc := Inconsistency{Key: identity, StoredVal: stored, NewVal: newVal, DetectedAt: now}
	b.incons = append(b.incons, inc)
	return inc, true
}

// Inconsistencies returns every inconsistency detected so far, oldest
// first. The slice is a copy; callers may not mutate the BMS through it.
func (b *BMS) Inconsistencies() []Inconsistency {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Inconsistency(nil), b.incons...)
}

// History returns the belief chain for key, most recent first, or nil if
// key has no recorded beliefs.
func (b *BMS) History(key string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Record
	for r := b.container[key]; r != nil; r = r.Prev {
		out = append(out, *r)
	}
	return out
}

// DerivedCount returns how many keys currently hold a FormDerived belief,
// the denominator ChkConst's callers report staleness against.
func (b *BMS) DerivedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, rec := range b.container {
		if rec.Form == FormDerived {
			n++
		}
	}
	return n
}

// ChkConst walks every derived belief's provenance chain looking for a
// contributing atom whose own current record postdates the derived
// belief — i.e. a belief was built on an antecedent that has since
// changed. It reports every such drift but never mutates the store or
// retracts anything: chk_const is advisory only here.
func (b *BMS) ChkConst() []StaleBelief {
	b.mu.Lock()
	defer b.mu.Unlock()
	var stale []StaleBelief
	for key, rec := range b.container {
		if rec.Form != FormDerived {
			continue
		}
		for _, dep := range rec.Contributing {
			depRec, ok := b.container[dep]
			if !ok {
				continue
			}
			if depRec.Date.After(rec.Date) {
				stale = append(stale, StaleBelief{Key: key, DependsOn: dep, DerivedAt: rec.Date, ChangedAt: depRec.Date})
			}
		}
	}
	return stale
}

// StaleBelief names a derived belief whose antecedent has since changed.
type StaleBelief struct {
	Key       string
	DependsOn string
	DerivedAt time.Time
	ChangedAt time.Time
}

// Stub is a per-query provenance buffer: it satisfies Sink the same way a
// *BMS does, but only queues what it is told instead of writing into a
// container, so a backward-chaining search that never reaches a final
// answer leaves the real BMS untouched. Promote replays the buffered
// calls, in order, against a real BMS once the query that produced them
// has a result worth keeping.
type Stub struct {
	mu      sync.Mutex
	pending []func(*BMS)
}

// NewStub creates an empty Stub.
func NewStub() *Stub {
	return &Stub{}
}

var _ Sink = (*Stub)(nil)

func (s *Stub) RecordSelf(key, identity string, value float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, func(b *BMS) { b.RecordSelf(key, identity, value, now) })
}

func (s *Stub) RecordDerived(key, identity, rule string, contributing []string, value float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contributing = append([]string(nil), contributing...)
	s.pending = append(s.pending, func(b *BMS) { b.RecordDerived(key, identity, rule, contributing, value, now) })
}

// Check never reports an inconsistency: contradiction detection compares a
// new value against the main BMS's last-known value, which a
// still-exploring query must not consult or perturb ahead of promotion.
func (s *Stub) Check(identity string, newVal float64, consistent bool, now time.Time) (Inconsistency, bool) {
	return Inconsistency{}, false
}

// Promote replays every buffered record into dst, in the order recorded,
// and empties the stub.
func (s *Stub) Promote(dst *BMS) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, apply := range pending {
		apply(dst)
	}
}
