package takarakuji

import "strconv"

// traditional_checker.go holds the match engine for traditional
// open-number games (ジャンボ宝くじ and the regional draws). One ticket
// is checked against every prize tier of the draw, because the tiers
// are not exclusive: a ticket can take a 下４ケタ prize and a 下２ケタ
// prize at the same time.

// CheckTraditionalTicket matches one traditional ticket against a
// settled draw and reports every tier it hits.
func CheckTraditionalTicket(spec *GameSpec, draw *Draw, ticket *Ticket) (*TicketResult, error) {
	if spec == nil || draw == nil || ticket == nil {
		return nil, ErrInvalidParameters.WithDetails("spec, draw and ticket are all required")
	}
	if spec.Kind != KindTraditional {
		return nil, ErrInvalidParameters.WithDetailsf("%s is not a traditional game", spec.Game)
	}
	if draw.Game != spec.Game {
		return nil, ErrInvalidParameters.WithDetailsf("draw belongs to %s, not %s", draw.Game, spec.Game)
	}

	var matched []*PrizeTier
	for i := range draw.Tiers {
		tier := &draw.Tiers[i]
		if tier.Rule == nil || !tier.Rule.Supported {
			continue
		}
		if ruleMatches(tier.Rule, ticket) {
			matched = append(matched, tier)
		}
	}

	result := &TicketResult{
		Game:   spec.Game,
		Period: draw.Period,
		Ticket: *ticket,
	}
	hits := settleTraditionalHits(matched)
	if len(hits) > 0 {
		result.Winning = true
		// Tiers are kept in table order, best prize first.
		result.Rank = hits[0].TierID
	}
	applyTotals(result, hits)
	return result, nil
}

// ruleMatches evaluates one materialized winning condition.
func ruleMatches(rule *TierRule, ticket *Ticket) bool {
	switch rule.Serial {
	case SerialExact:
		return groupRuleMatches(rule.Group, rule.GroupValue, rule.GroupWidth, ticket.Group) &&
			serialsEqual(rule.SerialValue, ticket.Serial)

	case SerialSuffix:
		return groupRuleMatches(rule.Group, rule.GroupValue, rule.GroupWidth, ticket.Group) &&
			serialTail(rule.SerialValue, rule.SerialWidth) == serialTail(ticket.Serial, rule.SerialWidth)

	case SerialAdjacent:
		// Pays the serials directly before and after each referenced
		// winning row, within that row's own group condition.
		for _, target := range rule.Targets {
			if groupRuleMatches(target.Group, target.GroupValue, target.GroupWidth, ticket.Group) &&
				adjacentSerials(target.Serial, ticket.Serial) {
				return true
			}
		}
		return false

	case SerialOtherGroup:
		// Pays the same serial in any group the referenced row does
		// not already pay.
		for _, target := range rule.Targets {
			if serialsEqual(target.Serial, ticket.Serial) &&
				!groupRuleMatches(target.Group, target.GroupValue, target.GroupWidth, ticket.Group) {
				return true
			}
		}
		return false
	}
	return false
}

// groupRuleMatches evaluates a group condition against a ticket's group.
func groupRuleMatches(rule GroupRule, value string, width int, ticketGroup string) bool {
	switch rule {
	case GroupAny:
		return true
	case GroupExact:
		want, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		got, err := strconv.Atoi(ticketGroup)
		if err != nil {
			return false
		}
		return want == got
	case GroupSuffix:
		if width <= 0 {
			return false
		}
		return serialTail(ticketGroup, width) == serialTail(value, width)
	}
	return false
}

// serialsEqual compares two serials as zero padded digit strings, so
// 0229 and 229 are the same serial.
func serialsEqual(a, b string) bool {
	width := len(a)
	if len(b) > width {
		width = len(b)
	}
	if width == 0 {
		return false
	}
	return padSerial(a, width) == padSerial(b, width)
}

// serialTail returns the last width digits of a serial, zero padding
// short values first.
func serialTail(s string, width int) string {
	if width <= 0 {
		return ""
	}
	padded := padSerial(s, width)
	return padded[len(padded)-width:]
}

// adjacentSerials reports whether two serials differ by exactly one.
func adjacentSerials(a, b string) bool {
	ai, err := strconv.Atoi(a)
	if err != nil {
		return false
	}
	bi, err := strconv.Atoi(b)
	if err != nil {
		return false
	}
	diff := ai - bi
	if diff < 0 {
		diff = -diff
	}
	return diff == 1
}
