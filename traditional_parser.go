package takarakuji

import (
	"regexp"
	"strconv"
	"strings"
)

// Condition text fragments the provider uses in traditional prize rows.
const (
	condAnyGroup   = "各組共通"
	condAdjacent   = "前後の番号"
	condOtherGroup = "組違い同番号"
)

var (
	groupSuffixCondRe  = regexp.MustCompile(`組下(\d+)ケタ(\d+)組`)
	serialSuffixCondRe = regexp.MustCompile(`下(\d+)ケタ`)
	exactGroupCondRe   = regexp.MustCompile(`^(\d+)組$`)
)

// traditionalRow is one raw prize row before rule materialization.
type traditionalRow struct {
	rank   string
	amount string
	group  string
	number string
}

// ParseTraditionalDraws parses a combined traditional game CSV into its
// draws, newest first. The payload carries one section per draw, each
// introduced by an A01 marker row.
func ParseTraditionalDraws(game Game, payload []byte, sourceURL string) ([]*Draw, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, err
	}
	if spec.Kind != KindTraditional {
		return nil, ErrInvalidGame.WithDetailsf("game %q is not a traditional game", game)
	}

	rows, err := parseCSVRows(payload)
	if err != nil {
		return nil, withSource(err, sourceURL)
	}

	var sections [][][]string
	var current [][]string
	for _, row := range rows {
		if cellAt(row, 0) == sectionMarker {
			if len(current) > 0 {
				sections = append(sections, current)
				current = nil
			}
			continue
		}
		current = append(current, row)
	}
	if len(current) > 0 {
		sections = append(sections, current)
	}

	var draws []*Draw
	for _, section := range sections {
		if len(section) < 2 {
			continue
		}
		draw, err := parseTraditionalSection(game, section, sourceURL)
		if err != nil {
			return nil, withSource(err, sourceURL)
		}
		draws = append(draws, draw)
	}

	if len(draws) == 0 {
		return nil, ErrParseFailed.WithDetails("no draw sections found in payload").WithSourceURL(sourceURL)
	}
	return draws, nil
}

func parseTraditionalSection(game Game, section [][]string, sourceURL string) (*Draw, error) {
	header := section[0]
	draw := &Draw{
		Game:      game,
		Kind:      KindTraditional,
		Title:     cellAt(header, 0),
		Subtitle:  cellAt(header, 1),
		DateJP:    cellAt(header, 2),
		Venue:     cellAt(header, 3),
		SourceURL: sourceURL,
	}

	period, err := parsePeriodFromTitle(draw.Title)
	if err != nil {
		return nil, err
	}
	draw.Period = period

	var prizeRows []traditionalRow
	for _, row := range section[1:] {
		if len(row) == 0 {
			continue
		}
		if compactCell(row[0]) == paymentLabel {
			draw.PaymentPeriod = cellAt(row, 1)
			continue
		}
		if row[0] == "" {
			continue
		}
		prizeRows = append(prizeRows, traditionalRow{
			rank:   row[0],
			amount: cellAt(row, 1),
			group:  cellAt(row, 2),
			number: cellAt(row, 3),
		})
	}

	if len(prizeRows) == 0 {
		return nil, ErrEmptyPrizeSet.WithDetailsf("draw %d has no prize rows", period)
	}

	draw.Tiers = make([]PrizeTier, 0, len(prizeRows))
	for _, row := range prizeRows {
		amountYen, amountKnown := parseAmountYen(row.amount)
		draw.Tiers = append(draw.Tiers, PrizeTier{
			TierID:      compactCell(row.rank),
			Label:       row.rank,
			AmountText:  row.amount,
			AmountYen:   amountYen,
			AmountKnown: amountKnown,
			Rule:        materializeRule(row, prizeRows),
		})
	}

	return draw, nil
}

// materializeRule turns one prize row's condition text into its machine
// form. Rules referring to another tier (adjacent serials, same serial in
// a different group) get their reference rows resolved here, so matching
// never has to re-read the raw table.
func materializeRule(row traditionalRow, rows []traditionalRow) *TierRule {
	rule := &TierRule{
		Additive:  true,
		RawGroup:  row.group,
		RawNumber: row.number,
	}

	cond := compactCell(row.group)
	serial := digitsOnly(row.number)

	switch {
	case cond == "":
		rule.Group = GroupNever
		return rule

	case strings.Contains(cond, condAdjacent):
		rule.Serial = SerialAdjacent
		return resolveBaseTargets(rule, cond, rows)

	case strings.Contains(cond, condOtherGroup):
		rule.Serial = SerialOtherGroup
		return resolveBaseTargets(rule, cond, rows)

	case strings.Contains(cond, condAnyGroup):
		rule.Group = GroupAny
		rule.Serial = SerialExact
		rule.SerialValue = serial

	case groupSuffixCondRe.MatchString(cond):
		// Checked before the plain suffix form, which this condition
		// text also contains.
		m := groupSuffixCondRe.FindStringSubmatch(cond)
		rule.Group = GroupSuffix
		rule.GroupWidth, _ = strconv.Atoi(m[1])
		rule.GroupValue = m[2]
		rule.Serial = SerialExact
		rule.SerialValue = serial

	case serialSuffixCondRe.MatchString(cond):
		m := serialSuffixCondRe.FindStringSubmatch(cond)
		rule.Group = GroupAny
		rule.Serial = SerialSuffix
		rule.SerialWidth, _ = strconv.Atoi(m[1])
		rule.SerialValue = serial

	case exactGroupCondRe.MatchString(cond):
		m := exactGroupCondRe.FindStringSubmatch(cond)
		rule.Group = GroupExact
		rule.GroupValue = m[1]
		rule.Serial = SerialExact
		rule.SerialValue = serial

	default:
		rule.Group = GroupNever
		return rule
	}

	// A payable condition without a winning number can never match.
	if rule.SerialValue == "" || (rule.Serial == SerialSuffix && rule.SerialWidth == 0) {
		return rule
	}
	if rule.Group == GroupSuffix && rule.GroupWidth == 0 {
		return rule
	}

	rule.Supported = true
	return rule
}

// resolveBaseTargets fills in the reference rows for a rule defined
// relative to another tier, such as 1等の前後の番号.
func resolveBaseTargets(rule *TierRule, cond string, rows []traditionalRow) *TierRule {
	base, ok := rankInText(cond)
	if !ok {
		rule.Group = GroupNever
		return rule
	}
	rule.BaseTier = base

	for _, row := range rows {
		if compactCell(row.rank) != base {
			continue
		}
		serial := digitsOnly(row.number)
		if serial == "" {
			continue
		}

		group, value, width := parseGroupMatcher(compactCell(row.group))
		rule.Targets = append(rule.Targets, RuleTarget{
			Group:      group,
			GroupValue: value,
			GroupWidth: width,
			Serial:     serial,
		})
	}

	rule.Supported = true
	return rule
}

// parseGroupMatcher reads just the group half of a condition text. Used
// for the base rows referenced by adjacent and other-group rules.
func parseGroupMatcher(cond string) (GroupRule, string, int) {
	switch {
	case cond == "":
		return GroupNever, "", 0
	case strings.Contains(cond, condAnyGroup):
		return GroupAny, "", 0
	case groupSuffixCondRe.MatchString(cond):
		m := groupSuffixCondRe.FindStringSubmatch(cond)
		if width, _ := strconv.Atoi(m[1]); width > 0 {
			return GroupSuffix, m[2], width
		}
		return GroupNever, "", 0
	case serialSuffixCondRe.MatchString(cond):
		// Serial-suffix rows pay every group.
		return GroupAny, "", 0
	case exactGroupCondRe.MatchString(cond):
		m := exactGroupCondRe.FindStringSubmatch(cond)
		return GroupExact, m[1], 0
	default:
		return GroupNever, "", 0
	}
}
