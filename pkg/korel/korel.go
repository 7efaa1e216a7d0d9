// Package korel is the top-level facade: it wires a knowledge store, its
// belief maintenance system, a parser, and an inference engine into the
// tell/ask/test_pred/objs_by_ctg surface, the same way New/Options once
// wired a store + pipeline + inference engine behind a handful of
// top-level methods, generalized here from search/ingest to assert/query
// over a fuzzy knowledge base.
package korel

import (
	"context"
	"fmt"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/bms"
	"github.com/cognicore/korel/pkg/korel/config"
	"github.com/cognicore/korel/pkg/korel/inference"
	"github.com/cognicore/korel/pkg/korel/inference/simple"
	"github.com/cognicore/korel/pkg/korel/internalerr"
	"github.com/cognicore/korel/pkg/korel/kb"
	"github.com/cognicore/korel/pkg/korel/parser"
	"github.com/cognicore/korel/pkg/korel/store"
)

// Korel is the knowledge engine facade: one store, its BMS, and an
// inference engine bound together.
type Korel struct {
	store store.Store
	bms   *bms.BMS
	inf   inference.Engine
}

// Options configures a Korel instance. A nil Inference falls back to the
// default backward-chaining engine (pkg/korel/inference/simple) built over
// the same store.
type Options struct {
	Inference inference.Engine
	Config    config.Options
}

// New creates a Korel instance backed by a fresh in-memory knowledge store.
func New(opts Options) *Korel {
	cfg := opts.Config
	if cfg == (config.Options{}) {
		cfg = config.Default()
	}
	kb.LockTimeout = cfg.LockTimeout()

	rep := kb.New()
	inf := opts.Inference
	if inf == nil {
		inf = simple.New(rep, simple.Config{MaxIterations: cfg.MaxIterations, MemoSize: cfg.MemoSize})
	}
	return &Korel{store: rep, bms: rep.BMS, inf: inf}
}

// Tell ingests one statement: a grounded membership/relation fact, or a
// quantified rule. Rules are run forward immediately against every
// individual already known to satisfy their left side.
func (k *Korel) Tell(ctx context.Context, text string) error {
	batch, err := parser.Parse(text)
	if err != nil {
		return err
	}

	for _, m := range batch.Memberships {
		if err := k.store.UpMemb(ctx, m); err != nil {
			return err
		}
	}
	for _, r := range batch.Relations {
		if err := k.store.UpRel(ctx, r); err != nil {
			return err
		}
	}
	for _, rule := range batch.Rules {
		if err := rule.Validate(); err != nil {
			return err
		}
		if err := k.store.SaveRule(ctx, rule, func() error {
			return simple.RunRule(k.store, rule)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Ask resolves one query string via backward chaining. single=true answers
// the grounded query's own truth value; single=false answers a per-subject
// mapping for a quantified query.
func (k *Korel) Ask(ctx context.Context, text string, single bool) (inference.Result, error) {
	q, err := parser.ParseQuery(text)
	if err != nil {
		return inference.Result{}, err
	}
	return k.inf.Ask(ctx, q, single)
}

// TestPred reports the store's current opinion of a grounded atom without
// running inference.
func (k *Korel) TestPred(text string) (atom.Tri, error) {
	batch, err := parser.Parse(text)
	if err != nil {
		return atom.Unknown, err
	}
	switch {
	case len(batch.Memberships) == 1:
		return k.store.TestMembership(batch.Memberships[0])
	case len(batch.Relations) == 1:
		return k.store.TestRelation(batch.Relations[0])
	default:
		return atom.Unknown, fmt.Errorf("%w: test_pred expects a single grounded atom", internalerr.ErrInvalidInput)
	}
}

// ObjsByCtg returns, for every individual or class holding at least one of
// names, the subset of names it holds.
func (k *Korel) ObjsByCtg(names []string, kind store.Kind) map[string]map[string]struct{} {
	return k.store.ObjsByCtg(names, kind)
}

// BMS exposes the belief maintenance log for inspection/reconciliation
// (pkg/korel/maintenance.Reconciler reads this).
func (k *Korel) BMS() *bms.BMS {
	return k.bms
}
