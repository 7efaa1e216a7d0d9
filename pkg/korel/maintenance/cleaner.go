// Package maintenance holds korel's out-of-band upkeep jobs: reconciling
// derived beliefs against their antecedents' provenance, and exporting the
// store's facts for external inspection.
package maintenance

import (
	"context"
	"errors"

	"github.com/cognicore/korel/pkg/korel/bms"
)

// Reconciler periodically re-checks a BMS's derived beliefs against the
// antecedents they were built on, surfacing drift without ever mutating
// the store -- chk_const itself is reporting-only (bms.ChkConst). Grounded
// on the prior Cleaner job runner, generalized from replaying re-tokenized
// documents to replaying belief-provenance checks.
type Reconciler struct {
	BMS *bms.BMS
	// Report, if set, is invoked once per stale belief found.
	Report func(bms.StaleBelief)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Reviewed int
	Stale    int
}

// Run walks every derived belief once and reports drift, if any.
func (c *Reconciler) Run(ctx context.Context) (Result, error) {
	var res Result
	if c.BMS == nil {
		return res, errors.New("reconciler: nil bms")
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Reviewed = c.BMS.DerivedCount()
	for _, sb := range c.BMS.ChkConst() {
		res.Stale++
		if c.Report != nil {
			c.Report(sb)
		}
	}
	return res, nil
}
