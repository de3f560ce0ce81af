package pipeline

import (
	"strings"

	"github.com/sirupsen/logrus"

	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/termsheet"
	"deal-eval/backend/internal/util"
)

// draftTermSheet drafts the sheet for a passing decision. A draft failure
// leaves the decision intact and is only logged.
func (r *Runner) draftTermSheet(rn *run, log *logrus.Entry) {
	params := rn.result.Decision.Investment
	if params == nil {
		return
	}
	timer := util.StartTimer()
	var summary *deal.InvestmentSummary
	if rn.result.CapTable != nil && params.Instrument == deal.InstrumentEquity {
		summary = &rn.result.CapTable.Summary
	}
	in := mergeTerms(termsheet.FromDecision(rn.req.CompanyName, *params, summary), rn.req.Terms, rn.result.Decision.Conditions)

	sheet, err := termsheet.Draft(in)
	rn.timing(StageTermSheet, timer.ElapsedMs())
	if err != nil {
		log.WithError(err).Warn("term sheet not drafted")
		return
	}
	rn.result.TermSheet = &sheet
}

// mergeTerms layers caller governance terms over the decision economics.
// Decision conditions become conditions precedent unless the caller lists its own.
func mergeTerms(base termsheet.Input, extra *termsheet.Input, conditions []string) termsheet.Input {
	base.ConditionsPrecedent = conditions
	if extra == nil {
		return base
	}
	if name := strings.TrimSpace(extra.InvestorName); name != "" {
		base.InvestorName = name
	}
	if extra.LiquidationPreference > 0 {
		base.LiquidationPreference = extra.LiquidationPreference
	}
	base.AntiDilution = base.AntiDilution || extra.AntiDilution
	base.BoardSeats = extra.BoardSeats
	base.ProtectiveProvisions = extra.ProtectiveProvisions
	base.UseOfProceeds = extra.UseOfProceeds
	base.ClosingDate = extra.ClosingDate
	if len(extra.ConditionsPrecedent) > 0 {
		base.ConditionsPrecedent = extra.ConditionsPrecedent
	}
	return base
}
