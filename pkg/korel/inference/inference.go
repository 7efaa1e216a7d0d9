// Package inference defines the Engine interface korel's backward-chaining
// reasoner implements, plus the Node type every implementation shares.
// Keeping the interface separate from pkg/korel/inference/simple lets
// korel swap in an alternate engine (an optional classical cross-check
// engine lives at pkg/korel/inference/prolog).
package inference

import (
	"context"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/parser"
	"github.com/cognicore/korel/pkg/korel/sentence"
)

// Engine answers queries against a knowledge store via backward chaining
// with forward re-propagation.
type Engine interface {
	// Ask resolves q. When single is true the result is one tri-value for
	// the grounded query; otherwise it is a per-subject mapping.
	Ask(ctx context.Context, q parser.Query, single bool) (Result, error)
}

// Result is the outcome of one ask call. Single carries the tri-value
// when the caller asked for single=true; Mapping carries, for an
// unbound/quantified query, each satisfying subject's per-atom-name truth
// values -- subject -> atom name -> tri-value, since a quantified query's
// sentence can name more than one predicate.
type Result struct {
	Single  atom.Tri
	Mapping map[string]map[string]atom.Tri
}

// Node is a materialized inference rule candidate: one consequent name,
// the antecedent names it depends on, and the per-variable set of
// category/relation names a candidate substitution must hold, matching
// kblogic.py's InferNode.
type Node struct {
	Consequent  string
	Antecedents []string
	Subs        map[string]map[string]struct{}
	Rule        *sentence.LogSentence
}
