// Package atom implements korel's ground logical units: membership atoms
// (an entity's fuzzy degree of belonging to a category), relation atoms
// (n-ary functions between entities/classes) and date-comparison atoms.
//
// Grounded on bklooste/simag's kblogic.py (LogFunction/RelationFunc,
// predicate tuples) and bms.py, reworked as a tagged variant instead of a
// runtime class hierarchy.
package atom

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cognicore/korel/pkg/korel/internalerr"
)

// Comparator is the relational operator attached to a fuzzy value.
type Comparator byte

const (
	Eq Comparator = '='
	Lt Comparator = '<'
	Gt Comparator = '>'
)

func (c Comparator) String() string { return string(rune(c)) }

// ParseComparator parses a single-byte comparator.
func ParseComparator(s string) (Comparator, error) {
	switch s {
	case "=":
		return Eq, nil
	case "<":
		return Lt, nil
	case ">":
		return Gt, nil
	default:
		return 0, fmt.Errorf("%w: unknown comparator %q", internalerr.ErrInvalidInput, s)
	}
}

// Tri is a three-valued logic result: true, false, or unknown.
type Tri int

const (
	Unknown Tri = iota
	True
	False
)

func (t Tri) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// FromBool lifts a Go bool into Tri.
func FromBool(b bool) Tri {
	if b {
		return True
	}
	return False
}

// Not is three-valued negation.
func (t Tri) Not() Tri {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// validValue reports whether v is a legal fuzzy truth value.
func validValue(v float64) bool { return v >= 0 && v <= 1 }

// CheckValue returns internalerr.ErrValueRange if v is outside [0,1].
func CheckValue(v float64) error {
	if !validValue(v) {
		return fmt.Errorf("%w: %v", internalerr.ErrValueRange, v)
	}
	return nil
}

// TestAgainst applies comparator op, as carried by the query/new atom, to a
// currently-stored value: op encodes what relationship the caller is
// asserting/asking about the stored value.
//
// The original Python (kblogic.py Particle.ispred) has a latent bug in its
// '<' branch (it compares for equality instead of '<'); here we implement
// the mathematically consistent comparator instead of reproducing the bug.
func TestAgainst(stored float64, op Comparator, query float64) bool {
	switch op {
	case Eq:
		return stored == query
	case Gt:
		return stored > query
	case Lt:
		return stored < query
	default:
		return false
	}
}

// Consistent reports whether a newly asserted value is consistent with a
// previously stored value under the *stored* atom's comparator: '='
// requires equality, '>' requires stored>new, '<' requires stored<new.
func Consistent(stored float64, storedOp Comparator, newVal float64) bool {
	switch storedOp {
	case Eq:
		return stored == newVal
	case Gt:
		return stored > newVal
	case Lt:
		return stored < newVal
	default:
		return false
	}
}

// CurrentlyTrue applies the time-validity short circuit: an atom with an
// even number of validity dates is currently false, odd means currently
// true. An atom with no validity dates carries no temporal constraint and
// is always considered currently valid.
func CurrentlyTrue(dates []time.Time) bool {
	if len(dates) == 0 {
		return true
	}
	return len(dates)%2 == 1
}

// Membership is a grounded or free predicate: category/subject/value/op,
// with optional time validity. Free membership atoms carry a variable name
// in Term, bound during unification.
type Membership struct {
	Parent string // category name
	Term   string // subject name (grounded) or variable name (free)
	Value  float64
	Op     Comparator
	Dates  []time.Time // validity history; see CurrentlyTrue
	Free   bool        // true if Term is a variable, not yet bound
}

// NewMembership validates and constructs a grounded membership atom.
func NewMembership(parent, term string, value float64, op Comparator) (Membership, error) {
	if err := CheckValue(value); err != nil {
		return Membership{}, err
	}
	return Membership{Parent: parent, Term: term, Value: value, Op: op}, nil
}

// Key returns the canonical BMS string key for this atom, matching
// bms.py's WrappDecl.remake format: "parent[term,u=value]".
func (m Membership) Key() string {
	return fmt.Sprintf("%s[%s,u%s%s]", m.Parent, m.Term, m.Op, formatValue(m.Value))
}

// Substitute returns a copy of m with Term replaced by its binding, if
// bindings has an entry for Term; Free is then cleared.
func (m Membership) Substitute(bindings map[string]string) Membership {
	out := m
	if b, ok := bindings[m.Term]; ok {
		out.Term = b
		out.Free = false
	}
	return out
}

// Equal compares two grounded membership atoms for the same (parent, term)
// slot, applying time validity first and then the comparator semantics.
// Returns internalerr.ErrShapeMismatch if the atoms are not for the same
// category.
func (m Membership) Equal(other Membership) (bool, error) {
	if m.Parent != other.Parent {
		return false, fmt.Errorf("%w: category %q vs %q", internalerr.ErrShapeMismatch, m.Parent, other.Parent)
	}
	if !CurrentlyTrue(m.Dates) || !CurrentlyTrue(other.Dates) {
		return false, nil
	}
	return TestAgainst(other.Value, m.Op, m.Value), nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// RelArg is one positional argument of a relation atom. Only the object
// position (index 0 by convention) carries a truth value and comparator;
// all other positions carry identity only.
type RelArg struct {
	Term     string
	HasValue bool
	Value    float64
	Op       Comparator
}

// Relation is an n-ary function atom between subjects/classes. args[0] is
// the object of the relation and carries the truth value.
type Relation struct {
	Func  string
	Args  []RelArg
	Dates []time.Time
}

// NewRelation validates and constructs a relation atom. Only args[0] may
// carry a value; it is validated to be within [0,1].
func NewRelation(fn string, args []RelArg) (Relation, error) {
	if len(args) == 0 {
		return Relation{}, fmt.Errorf("%w: relation %q has no arguments", internalerr.ErrInvalidInput, fn)
	}
	if args[0].HasValue {
		if err := CheckValue(args[0].Value); err != nil {
			return Relation{}, err
		}
	}
	return Relation{Func: fn, Args: append([]RelArg(nil), args...)}, nil
}

// Arity returns the number of arguments.
func (r Relation) Arity() int { return len(r.Args) }

// ArgNames returns the term names in positional order, useful for
// building the cognition-index / InferNode variable maps.
func (r Relation) ArgNames() []string {
	out := make([]string, len(r.Args))
	for i, a := range r.Args {
		out[i] = a.Term
	}
	return out
}

// ArgsHash returns a stable hash of the argument identity (term names,
// ignoring value/op), used to uniquely identify an atom within a relation
// bucket.
func (r Relation) ArgsHash() string {
	names := r.ArgNames()
	return r.Func + "(" + strings.Join(names, ",") + ")"
}

// Substitute returns a copy of r with each argument whose term has a
// binding replaced by it. bindings is keyed by current term name;
// arguments with no entry keep their term.
func (r Relation) Substitute(bindings map[string]string) Relation {
	out := r
	out.Args = make([]RelArg, len(r.Args))
	for i, a := range r.Args {
		if b, ok := bindings[a.Term]; ok {
			a.Term = b
		}
		out.Args[i] = a
	}
	return out
}

// Key returns the canonical BMS key for this relation atom, matching
// bms.py's format "<func[obj,u=val;arg1;arg2...]>".
func (r Relation) Key() string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(r.Func)
	b.WriteByte('[')
	for i, a := range r.Args {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(a.Term)
		if a.HasValue {
			b.WriteString(",u")
			b.WriteString(a.Op.String())
			b.WriteString(formatValue(a.Value))
		}
	}
	b.WriteByte(']')
	b.WriteByte('>')
	return b.String()
}

// Equal compares two relation atoms. Relation equality additionally
// requires matching arity, func name and positional arg identities (all
// positions except args[0] compare as pure identity);
// args[0]'s value/op drive the truth comparison the same way membership
// atoms do.
func (r Relation) Equal(other Relation) (bool, error) {
	if r.Arity() != other.Arity() {
		return false, fmt.Errorf("%w: arity %d vs %d", internalerr.ErrShapeMismatch, r.Arity(), other.Arity())
	}
	if r.Func != other.Func {
		return false, fmt.Errorf("%w: function %q vs %q", internalerr.ErrShapeMismatch, r.Func, other.Func)
	}
	for i := 1; i < len(r.Args); i++ {
		if r.Args[i].Term != other.Args[i].Term {
			return false, fmt.Errorf("%w: arg[%d] %q vs %q", internalerr.ErrShapeMismatch, i, r.Args[i].Term, other.Args[i].Term)
		}
	}
	if !CurrentlyTrue(r.Dates) || !CurrentlyTrue(other.Dates) {
		return false, nil
	}
	if !r.Args[0].HasValue || !other.Args[0].HasValue {
		return r.Args[0].Term == other.Args[0].Term, nil
	}
	return TestAgainst(other.Args[0].Value, r.Args[0].Op, r.Args[0].Value), nil
}

// TimeCompare is a specialized atom comparing two dates under {<,>,=}. An
// unresolved (unbound) date variable defers the comparison and yields
// Unknown rather than a bool.
type TimeCompare struct {
	Left, Right string // date variable names, or RFC3339 literals
	Op          Comparator
}

// Resolve evaluates the comparison given a binding table from variable
// name to a concrete time.Time. Returns Unknown if either side is unbound.
func (d TimeCompare) Resolve(bound map[string]time.Time) Tri {
	lt, lok := resolveTime(d.Left, bound)
	rt, rok := resolveTime(d.Right, bound)
	if !lok || !rok {
		return Unknown
	}
	switch d.Op {
	case Eq:
		return FromBool(lt.Equal(rt))
	case Lt:
		return FromBool(lt.Before(rt))
	case Gt:
		return FromBool(lt.After(rt))
	default:
		return Unknown
	}
}

func resolveTime(s string, bound map[string]time.Time) (time.Time, bool) {
	if t, ok := bound[s]; ok {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// SortedKeys is a small helper used by several callers (kb cog index,
// inference memoization) to produce deterministic iteration order over a
// name set.
func SortedKeys[M ~map[string]V, V any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
