package maintenance

import (
	"context"
	"fmt"
	"strings"

	"github.com/cognicore/korel/pkg/korel/atom"
)

// RuleWriter persists exported rule/fact text to a destination (file, DB,
// whatever the caller wires up).
type RuleWriter interface {
	WriteRules(ctx context.Context, content string) error
}

// RuleExporter renders a knowledge store's grounded facts as Prolog-style
// clauses -- unquoted names with the '$' sigil stripped, each followed by
// a comment carrying its value; this text is produced independently of
// pkg/korel/inference/prolog's quoted goals -- for inspection or handing
// to an external tool. Grounded on the prior RuleExporter, generalized from rendering
// autotune rule suggestions to rendering korel's own membership/relation
// facts.
type RuleExporter struct {
	Writer RuleWriter
}

// Export renders facts and relations as Prolog clauses and hands the
// resulting text to e.Writer.
func (e *RuleExporter) Export(ctx context.Context, facts []atom.Membership, relations []atom.Relation) error {
	if e.Writer == nil {
		return fmt.Errorf("rule exporter: nil writer")
	}
	var b strings.Builder
	for _, m := range facts {
		if m.Free {
			continue
		}
		fmt.Fprintf(&b, "%s(%s). %% u%s%v\n", sanitize(m.Parent), sanitize(m.Term), m.Op, m.Value)
	}
	for _, r := range relations {
		terms := make([]string, len(r.Args))
		for i, a := range r.Args {
			terms[i] = sanitize(a.Term)
		}
		var tag string
		if len(r.Args) > 0 && r.Args[0].HasValue {
			tag = fmt.Sprintf(" %% u%s%v", r.Args[0].Op, r.Args[0].Value)
		}
		fmt.Fprintf(&b, "%s(%s).%s\n", sanitize(r.Func), strings.Join(terms, ", "), tag)
	}
	return e.Writer.WriteRules(ctx, b.String())
}

func sanitize(s string) string {
	return strings.ReplaceAll(strings.TrimPrefix(s, "$"), "-", "_")
}
