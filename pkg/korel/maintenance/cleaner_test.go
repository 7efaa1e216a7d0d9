package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/cognicore/korel/pkg/korel/bms"
)

func TestReconcilerFindsStaleDerivation(t *testing.T) {
	b := bms.New()
	t0 := time.Unix(0, 0).UTC()
	t1 := t0.Add(time.Minute)

	b.RecordSelf("bird[$Tweety,u=1]", "bird[$Tweety]", 1, t0)
	b.RecordDerived("flies[$Tweety,u=1]", "flies[$Tweety]", "flies", []string{"bird[$Tweety,u=1]"}, 1, t0)
	// The antecedent changes after the derived belief was recorded.
	b.RecordSelf("bird[$Tweety,u=1]", "bird[$Tweety]", 0, t1)

	var reported []bms.StaleBelief
	rec := Reconciler{BMS: b, Report: func(sb bms.StaleBelief) { reported = append(reported, sb) }}

	res, err := rec.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Reviewed != 1 {
		t.Fatalf("expected 1 derived belief reviewed, got %d", res.Reviewed)
	}
	if res.Stale != 1 || len(reported) != 1 {
		t.Fatalf("expected 1 stale belief, got %+v reported=%v", res, reported)
	}
	if reported[0].Key != "flies[$Tweety,u=1]" || reported[0].DependsOn != "bird[$Tweety,u=1]" {
		t.Fatalf("unexpected stale belief: %+v", reported[0])
	}
}

func TestReconcilerNoStaleBeliefs(t *testing.T) {
	b := bms.New()
	now := time.Unix(0, 0).UTC()
	b.RecordSelf("professor[$Lucy,u=1]", "professor[$Lucy]", 1, now)

	rec := Reconciler{BMS: b}
	res, err := rec.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Reviewed != 0 || res.Stale != 0 {
		t.Fatalf("expected a clean pass, got %+v", res)
	}
}

func TestReconcilerRejectsNilBMS(t *testing.T) {
	rec := Reconciler{}
	if _, err := rec.Run(context.Background()); err == nil {
		t.Fatal("expected an error for a nil bms")
	}
}
