package takarakuji

// checker.go holds the match engine for selection games (ロト).
// Traditional open-number games live in traditional_checker.go.

// matchSorted returns the ticket numbers that appear in the pool, in
// ticket order. Tickets keep their numbers sorted, so the intersection
// comes out sorted too.
func matchSorted(ticket []int, pool []int) []int {
	set := make(map[int]struct{}, len(pool))
	for _, n := range pool {
		set[n] = struct{}{}
	}

	matched := make([]int, 0, len(ticket))
	for _, n := range ticket {
		if _, ok := set[n]; ok {
			matched = append(matched, n)
		}
	}
	return matched
}

// CheckSelectionTicket matches one selection ticket against a settled
// draw. The game's rank table is walked top down and the first rule
// satisfied by the main and bonus hit counts decides the rank; a main
// count that satisfies no rule loses.
func CheckSelectionTicket(spec *GameSpec, draw *Draw, ticket *Ticket) (*TicketResult, error) {
	if spec == nil || draw == nil || ticket == nil {
		return nil, ErrInvalidParameters.WithDetails("spec, draw and ticket are all required")
	}
	if spec.Kind != KindSelection {
		return nil, ErrInvalidParameters.WithDetailsf("%s is not a selection game", spec.Game)
	}
	if draw.Game != spec.Game {
		return nil, ErrInvalidParameters.WithDetailsf("draw belongs to %s, not %s", draw.Game, spec.Game)
	}

	matchedMain := matchSorted(ticket.Numbers, draw.Numbers)
	matchedBonus := matchSorted(ticket.Numbers, draw.Bonus)

	result := &TicketResult{
		Game:         spec.Game,
		Period:       draw.Period,
		Ticket:       *ticket,
		MatchedMain:  matchedMain,
		MatchedBonus: matchedBonus,
	}

	var rank string
	for _, rule := range spec.Ranks {
		if len(matchedMain) != rule.Matched {
			continue
		}
		if rule.NeedsBonus && len(matchedBonus) == 0 {
			continue
		}
		rank = rule.TierID
		break
	}
	if rank == "" {
		applyTotals(result, nil)
		return result, nil
	}

	// The game's rank table and the draw's prize table describe the
	// same tiers; a rank the table has no row for means the parse let
	// a broken table through.
	tier, ok := draw.Tier(rank)
	if !ok {
		return nil, ErrPrizeTableBroken.
			WithDetailsf("draw %d pays %s but its prize table has no such tier", draw.Period, rank).
			WithSourceURL(draw.SourceURL)
	}

	result.Winning = true
	result.Rank = rank
	applyTotals(result, []TierHit{{
		TierID:      tier.TierID,
		Label:       tier.Label,
		WinnersText: tier.WinnersText,
		AmountText:  tier.AmountText,
		AmountYen:   tier.AmountYen,
		AmountKnown: tier.AmountKnown,
	}})
	return result, nil
}
