package store_test

import (
	"context"
	"testing"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/kb"
	"github.com/cognicore/korel/pkg/korel/store"
)

// TestRepresentationSatisfiesStore exercises kb.Representation through the
// store.Store interface, the contract korel's facade actually programs
// against.
func TestRepresentationSatisfiesStore(t *testing.T) {
	var s store.Store = kb.New()

	m, err := atom.NewMembership("professor", "$Lucy", 1, atom.Eq)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpMemb(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	truth, err := s.TestMembership(m)
	if err != nil {
		t.Fatal(err)
	}
	if truth != atom.True {
		t.Fatalf("expected True, got %v", truth)
	}

	objs := s.ObjsByCtg([]string{"professor"}, store.Individuals)
	if _, ok := objs["$Lucy"]["professor"]; !ok {
		t.Fatalf("expected $Lucy indexed under professor, got %+v", objs)
	}
}
