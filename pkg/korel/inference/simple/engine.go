// Package simple implements korel's default backward-chaining inference
// engine: rule discovery over the knowledge store's cog index, candidate
// variable substitution via per-variable category requirements, and a
// fixpoint loop that keeps re-running applicable rules until a round
// produces no new assertions.
//
// Grounded on bklooste/simag's kblogic.py Inference (chain/rcsv_test/
// map_vars/get_rules/mk_nodes), restructured into explicit Go types instead
// of dynamically-built dict/set state, and using hashicorp/golang-lru for
// the per-query combination memoization table (the original's rule_tracker
// queue reset semantics, made explicit).
package simple

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/inference"
	"github.com/cognicore/korel/pkg/korel/internalerr"
	"github.com/cognicore/korel/pkg/korel/kb"
	"github.com/cognicore/korel/pkg/korel/parser"
	"github.com/cognicore/korel/pkg/korel/sentence"
	"github.com/cognicore/korel/pkg/korel/store"
)

// Config bounds the engine's fixpoint search: its round cap and its
// memoization cache size.
type Config struct {
	// MaxIterations caps the number of fixpoint restart rounds a single
	// Ask performs before giving up and returning its best-known result.
	MaxIterations int
	// MemoSize bounds the per-query combination-tried cache.
	MemoSize int
}

// DefaultConfig returns the engine's out-of-the-box tuning.
func DefaultConfig() Config {
	return Config{MaxIterations: 25, MemoSize: 4096}
}

// Engine is korel's default Go inference engine.
type Engine struct {
	store *kb.Representation
	cfg   Config
}

// New creates an Engine bound to store.
func New(store *kb.Representation, cfg Config) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.MemoSize <= 0 {
		cfg.MemoSize = DefaultConfig().MemoSize
	}
	return &Engine{store: store, cfg: cfg}
}

var _ inference.Engine = (*Engine)(nil)

// Ask resolves q against the engine's store, running backward chaining
// with forward re-propagation until a fixpoint. Rule firings during the
// search run through a kb.InferenceView, which commits facts straight into
// the store (so later rounds see earlier ones) but buffers their BMS
// derivation records in a per-query stub; the stub is promoted into the
// store's own BMS, with every round's records, once the fixpoint loop
// exits, so a query a caller cancels before the loop finishes never
// touches the main provenance log.
func (e *Engine) Ask(ctx context.Context, q parser.Query, single bool) (inference.Result, error) {
	if q.Sentence == nil {
		return inference.Result{}, internalerr.ErrInvalidInput
	}

	seedNames := sentence.PredicateNames(q.Sentence.Predicates(""))
	nodesByConsequent, allNames := e.discoverNodes(seedNames)

	memo, err := lru.New[string, struct{}](e.cfg.MemoSize)
	if err != nil {
		return inference.Result{}, err
	}

	view := kb.NewInferenceView(e.store)

	for round := 0; round < e.cfg.MaxIterations; round++ {
		if err := ctx.Err(); err != nil {
			return inference.Result{}, err
		}
		objDic := e.objectDictionary(allNames)
		updated := false

		for _, name := range allNames {
			for _, node := range nodesByConsequent[name] {
				if e.runNode(view, node, objDic, memo) {
					updated = true
				}
			}
		}
		if !updated {
			break
		}
	}
	view.Promote()

	if single {
		truth, _, _, err := q.Sentence.Eval(e.store, nil)
		if err != nil {
			return inference.Result{}, err
		}
		return inference.Result{Single: truth}, nil
	}

	return e.resolveMapping(q)
}

// runNode tries every untried candidate substitution for node, evaluating
// the rule each time against view rather than the live store directly;
// returns true if any substitution committed a new assertion, mirroring
// kblogic.py's rcsv_test "_updated" signal.
func (e *Engine) runNode(view sentence.Store, node *inference.Node, objDic map[string]map[string]struct{}, memo *lru.Cache[string, struct{}]) bool {
	candidates := mapVars(node, objDic)
	combos := cartesian(candidates)
	updated := false
	for _, args := range combos {
		key := comboKey(node, args)
		if _, tried := memo.Get(key); tried {
			continue
		}
		memo.Add(key, struct{}{})

		_, _, outcome, err := node.Rule.Eval(view, args)
		if err != nil {
			continue
		}
		if outcome == sentence.Committed {
			updated = true
		}
	}
	return updated
}

// mapVars computes, for each of node.Rule's variables in order, the
// subjects whose known category/relation set is a superset of that
// variable's required names, matching kblogic.py's map_vars.
func mapVars(node *inference.Node, objDic map[string]map[string]struct{}) [][]string {
	order := node.Rule.VarOrder
	out := make([][]string, len(order))
	for i, v := range order {
		required := node.Subs[v]
		var list []string
		for subj, have := range objDic {
			if supersetOf(have, required) {
				list = append(list, subj)
			}
		}
		sort.Strings(list)
		out[i] = list
	}
	return out
}

func supersetOf(have, required map[string]struct{}) bool {
	for r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// cartesian returns the cross product of candidate lists, one combination
// per variable position.
func cartesian(candidates [][]string) [][]string {
	if len(candidates) == 0 {
		return [][]string{{}}
	}
	rest := cartesian(candidates[1:])
	var out [][]string
	for _, c := range candidates[0] {
		for _, r := range rest {
			combo := make([]string, 0, len(r)+1)
			combo = append(combo, c)
			combo = append(combo, r...)
			out = append(out, combo)
		}
	}
	return out
}

func comboKey(node *inference.Node, args []string) string {
	return fmt.Sprintf("%s|%p|%v", node.Consequent, node.Rule, args)
}

// discoverNodes walks the cog index starting from seeds, materializing an
// inference.Node for every rule consequent reachable, and bidirectionally
// for rules whose right side mentions an already-seen name, matching
// kblogic.py's get_rules/mk_nodes.
func (e *Engine) discoverNodes(seeds []string) (map[string][]*inference.Node, []string) {
	seen := make(map[string]bool)
	queue := append([]string(nil), seeds...)
	nodes := make(map[string][]*inference.Node)
	var order []string
	visitedRules := make(map[*sentence.LogSentence]bool)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)

		for _, s := range e.store.CogFor(name) {
			lhsPreds := s.Predicates("l")
			rhsPreds := s.Predicates("r")
			lhsNames := sentence.PredicateNames(lhsPreds)
			rhsNames := sentence.PredicateNames(rhsPreds)

			if !visitedRules[s] {
				visitedRules[s] = true
				for _, rp := range rhsPreds {
					cname := predName(rp)
					node := buildNode(cname, lhsNames, lhsPreds, s)
					nodes[cname] = append(nodes[cname], node)
				}
				for _, n := range lhsNames {
					if !seen[n] {
						queue = append(queue, n)
					}
				}
			}

			if containsName(rhsNames, name) {
				for _, lp := range lhsPreds {
					cname := predName(lp)
					node := buildNode(cname, rhsNames, rhsPreds, s)
					nodes[cname] = append(nodes[cname], node)
				}
				for _, n := range rhsNames {
					if !seen[n] {
						queue = append(queue, n)
					}
				}
			}
		}
	}
	return nodes, order
}

func buildNode(consequent string, antecedentNames []string, antecedentPreds []*sentence.Particle, rule *sentence.LogSentence) *inference.Node {
	subs := make(map[string]map[string]struct{}, len(rule.VarOrder))
	for _, v := range rule.VarOrder {
		subs[v] = make(map[string]struct{})
	}
	for _, p := range antecedentPreds {
		switch p.Kind {
		case sentence.MembershipPred:
			if set, ok := subs[p.Membership.Term]; ok {
				set[p.Membership.Parent] = struct{}{}
			}
		case sentence.RelationPred:
			for _, a := range p.Relation.Args {
				if set, ok := subs[a.Term]; ok {
					set[p.Relation.Func] = struct{}{}
				}
			}
		}
	}
	return &inference.Node{Consequent: consequent, Antecedents: antecedentNames, Subs: subs, Rule: rule}
}

func predName(p *sentence.Particle) string {
	switch p.Kind {
	case sentence.MembershipPred:
		return p.Membership.Parent
	case sentence.RelationPred:
		return p.Relation.Func
	default:
		return ""
	}
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// objectDictionary computes objs_by_ctg(names, individuals) ∪
// objs_by_ctg(names, classes).
func (e *Engine) objectDictionary(names []string) map[string]map[string]struct{} {
	return objectDictionaryFor(e.store, names)
}

// objectDictionaryFor is objectDictionary's store-agnostic body, usable
// against any store.Store -- not just the engine's own -- so RunRule can
// share it when firing a single rule forward outside of Ask's fixpoint
// loop.
func objectDictionaryFor(st store.Store, names []string) map[string]map[string]struct{} {
	out := st.ObjsByCtg(names, store.Individuals)
	for subj, set := range st.ObjsByCtg(names, store.Classes) {
		dst, ok := out[subj]
		if !ok {
			dst = make(map[string]struct{})
			out[subj] = dst
		}
		for n := range set {
			dst[n] = struct{}{}
		}
	}
	return out
}

// RunRule fires rule forward against every substitution currently
// satisfying its left side, using the same per-variable candidate
// discovery and cartesian-product substitution Ask's fixpoint search uses
// for backward chaining. A combination that turns out not to bind (the
// left side resolves to anything but true, or the right side can't be
// asserted) is skipped rather than treated as an error, the same way a
// fixpoint round's failed candidates are -- so a multi-variable rule's
// immediate forward re-run at tell-time binds all of its variables at
// once, and a combination that doesn't pan out is silently passed over
// instead of aborting the rule's whole forward run.
func RunRule(st store.Store, rule *sentence.LogSentence) error {
	if rule == nil || rule.Start == nil {
		return nil
	}
	lhsPreds := rule.Predicates("l")
	lhsNames := sentence.PredicateNames(lhsPreds)
	node := buildNode("", lhsNames, lhsPreds, rule)
	objDic := objectDictionaryFor(st, lhsNames)

	for _, args := range cartesian(mapVars(node, objDic)) {
		if _, _, _, err := rule.Eval(st, args); err != nil {
			continue
		}
	}
	return nil
}

// resolveMapping answers an unbound/quantified query by directly testing
// every candidate subject known to hold the query's own predicate name(s),
// reporting each one's own truth value separately rather than folding the
// whole sentence into one tri-value per subject.
func (e *Engine) resolveMapping(q parser.Query) (inference.Result, error) {
	preds := q.Sentence.Predicates("")
	names := sentence.PredicateNames(preds)
	objDic := e.objectDictionary(names)

	mapping := make(map[string]map[string]atom.Tri)
	for subj, have := range objDic {
		hit := false
		for _, n := range names {
			if _, ok := have[n]; ok {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		args := make([]string, len(q.VarOrder))
		for i := range args {
			args[i] = subj
		}
		b, err := sentence.NewBindings(q.Sentence, args)
		if err != nil {
			continue
		}
		atoms := make(map[string]atom.Tri, len(preds))
		for _, p := range preds {
			name := predName(p)
			if name == "" {
				continue
			}
			truth, err := sentence.EvalPredicate(p, e.store, b)
			if err != nil {
				continue
			}
			atoms[name] = truth
		}
		if len(atoms) > 0 {
			mapping[subj] = atoms
		}
	}
	return inference.Result{Mapping: mapping}, nil
}
