package takarakuji

// prize.go settles matched prize tiers into payable amounts. Matching
// decides which tiers a ticket hit; settlement decides what that is
// worth, using only the draw's own published table.

// settleTraditionalHits turns matched prize rows into result hits.
// Each tier ID is kept at most once even when several rows justify it,
// and a tier marked non stacking is dropped when the tier it derives
// from was hit as well. Row order is preserved, so the best prize
// stays first.
func settleTraditionalHits(matched []*PrizeTier) []TierHit {
	if len(matched) == 0 {
		return nil
	}

	matchedIDs := make(map[string]bool, len(matched))
	for _, tier := range matched {
		matchedIDs[tier.TierID] = true
	}

	hits := make([]TierHit, 0, len(matched))
	settled := make(map[string]bool, len(matched))
	for _, tier := range matched {
		if settled[tier.TierID] {
			continue
		}
		rule := tier.Rule
		if !rule.Additive && rule.BaseTier != "" && matchedIDs[rule.BaseTier] {
			continue
		}
		settled[tier.TierID] = true
		hits = append(hits, TierHit{
			TierID:          tier.TierID,
			Label:           tier.Label,
			AmountText:      tier.AmountText,
			AmountYen:       tier.AmountYen,
			AmountKnown:     tier.AmountKnown,
			GroupCondition:  rule.RawGroup,
			NumberCondition: rule.RawNumber,
		})
	}
	return hits
}

// applyTotals stamps the settled hits and their sum onto a result. A
// hit whose amount the provider did not publish as a number keeps the
// total honest: the sum covers the known amounts only and the result
// says how many hits are missing from it.
func applyTotals(result *TicketResult, hits []TierHit) {
	result.Hits = hits
	result.TotalKnown = true
	for _, hit := range hits {
		if hit.AmountKnown {
			result.TotalYen += hit.AmountYen
		} else {
			result.UnknownHits++
			result.TotalKnown = false
		}
	}
}
