package maintenance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cognicore/korel/pkg/korel/atom"
)

type fakeWriter struct {
	content string
	err     error
}

func (f *fakeWriter) WriteRules(ctx context.Context, content string) error {
	if f.err != nil {
		return f.err
	}
	f.content = content
	return nil
}

func TestRuleExporterWritesFacts(t *testing.T) {
	writer := &fakeWriter{}
	exporter := RuleExporter{Writer: writer}

	m, err := atom.NewMembership("professor", "$Lucy", 1, atom.Eq)
	if err != nil {
		t.Fatal(err)
	}
	r, err := atom.NewRelation("friend", []atom.RelArg{
		{Term: "$John", HasValue: true, Value: 1, Op: atom.Eq},
		{Term: "$Lucy"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := exporter.Export(context.Background(), []atom.Membership{m}, []atom.Relation{r}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if !strings.Contains(writer.content, "professor(Lucy).") {
		t.Fatalf("unexpected export: %s", writer.content)
	}
	if !strings.Contains(writer.content, "friend(John, Lucy).") {
		t.Fatalf("unexpected export: %s", writer.content)
	}
}

func TestRuleExporterSkipsFreeAtoms(t *testing.T) {
	writer := &fakeWriter{}
	exporter := RuleExporter{Writer: writer}

	m := atom.Membership{Parent: "professor", Term: "x", Free: true}
	if err := exporter.Export(context.Background(), []atom.Membership{m}, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(writer.content) != "" {
		t.Fatalf("expected free atoms to be skipped, got %q", writer.content)
	}
}

func TestRuleExporterWriterError(t *testing.T) {
	exporter := RuleExporter{Writer: &fakeWriter{err: errors.New("fail")}}
	err := exporter.Export(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRuleExporterNilWriter(t *testing.T) {
	exporter := RuleExporter{}
	if err := exporter.Export(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}
