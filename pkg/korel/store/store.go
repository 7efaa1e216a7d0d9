// Package store defines the storage contract korel's facade programs
// against, in the same store.Store/memstore split used elsewhere: one
// narrow interface describing what a knowledge store must do, with
// pkg/korel/kb.Representation as its (currently only) concrete
// implementation. Keeping the interface here, rather than inlining it into
// the facade, leaves room for an alternate backing store -- a persistent
// one, say -- without the facade's call sites changing.
package store

import (
	"context"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/sentence"
)

// Store is everything korel's facade needs from a knowledge base: it is
// sentence.Store (so the inference engine can resolve/substitute against
// it directly) plus the ingestion and inspection surface tell/ask are
// built out of.
type Store interface {
	sentence.Store

	// UpMemb asserts or updates a grounded membership fact.
	UpMemb(ctx context.Context, m atom.Membership) error
	// UpRel asserts or updates a grounded relation fact.
	UpRel(ctx context.Context, r atom.Relation) error
	// SaveRule indexes a rule sentence into the cog index and invokes
	// runner once so the caller can run it forward immediately, against
	// whatever the rule's left side currently satisfies.
	SaveRule(ctx context.Context, s *sentence.LogSentence, runner func() error) error

	// CogFor returns every rule sentence indexed under name, the
	// starting point for backward-chaining rule discovery.
	CogFor(name string) []*sentence.LogSentence

	// ObjsByCtg returns, for every individual or class of kind holding
	// at least one of names, the subset of names it holds.
	ObjsByCtg(names []string, kind Kind) map[string]map[string]struct{}
}

// Kind selects which half of the store ObjsByCtg searches.
type Kind int

const (
	Individuals Kind = iota
	Classes
)
