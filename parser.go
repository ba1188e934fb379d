package takarakuji

import (
	"bytes"
	"encoding/csv"
	"io"
	"regexp"
	"strings"
)

// Markers and labels used in provider CSV payloads.
const (
	bonusMarker    = "ボーナス数字"
	carryoverLabel = "キャリーオーバー"
	salesLabel     = "販売実績額"
	paymentLabel   = "支払期間"
	sectionMarker  = "A01"
	entryNumbers   = "申込数字"
)

var indexFilenameRe = regexp.MustCompile(`(?i)(A\d+\.CSV)`)

// parseCSVRows reads a provider CSV payload into normalized rows. Rows
// whose cells are all empty are dropped, matching how the provider pads
// its files.
func parseCSVRows(payload []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ErrParseFailed.WithDetails("payload is not readable as CSV").WithCause(err)
		}

		cleaned := make([]string, len(record))
		empty := true
		for i, cell := range record {
			cleaned[i] = normalizeCell(cell)
			if cleaned[i] != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, cleaned)
		}
	}
	return rows, nil
}

// ParseIndexFilenames extracts result filenames from a name.txt index
// payload, newest first. Limit 0 means no limit.
func ParseIndexFilenames(payload []byte, limit int) []string {
	var filenames []string
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := indexFilenameRe.FindStringSubmatch(line); m != nil {
			filenames = append(filenames, strings.ToUpper(m[1]))
		}
		if limit > 0 && len(filenames) >= limit {
			break
		}
	}
	return filenames
}

// ParseSelectionDraw parses one selection game result CSV into a Draw.
// The payload layout is fixed: a file marker row, a header row with the
// title, then the payment period, the drawn numbers split by the bonus
// marker, and finally the prize table.
func ParseSelectionDraw(game Game, payload []byte, sourceURL string) (*Draw, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, err
	}
	if spec.Kind != KindSelection {
		return nil, ErrInvalidGame.WithDetailsf("game %q is not a selection game", game)
	}

	rows, err := parseCSVRows(payload)
	if err != nil {
		return nil, withSource(err, sourceURL)
	}
	if len(rows) < 4 {
		return nil, ErrParseFailed.WithDetailsf("expected at least 4 rows, got %d", len(rows)).WithSourceURL(sourceURL)
	}

	header := rows[1]
	draw := &Draw{
		Game:        game,
		Kind:        KindSelection,
		Title:       cellAt(header, 0),
		DateJP:      cellAt(header, 2),
		Venue:       cellAt(header, 3),
		Carryover:   "-",
		SalesAmount: "-",
		SourceURL:   sourceURL,
	}

	draw.Period, err = parsePeriodFromTitle(draw.Title)
	if err != nil {
		return nil, withSource(err, sourceURL)
	}
	draw.PaymentPeriod = cellAt(rows[2], 1)

	if err := parseDrawnNumbers(spec, rows[3], draw); err != nil {
		return nil, withSource(err, sourceURL)
	}

	for _, row := range rows[4:] {
		if len(row) == 0 {
			continue
		}
		label := compactCell(row[0])
		if label == "" {
			continue
		}
		if label == carryoverLabel && len(row) > 1 {
			draw.Carryover = row[1]
			continue
		}
		if label == salesLabel && len(row) > 1 {
			draw.SalesAmount = row[1]
			continue
		}

		if rank, ok := normalizedRank(label); ok && len(row) >= 3 {
			// The provider repeats each rank with its entry condition
			// text; only the payout row carries winners and amount.
			if strings.Contains(row[1], entryNumbers) {
				continue
			}
			amountYen, amountKnown := parseAmountYen(row[len(row)-1])
			draw.Tiers = append(draw.Tiers, PrizeTier{
				TierID:      rank,
				Label:       row[0],
				WinnersText: row[len(row)-2],
				AmountText:  row[len(row)-1],
				AmountYen:   amountYen,
				AmountKnown: amountKnown,
			})
		}
	}

	if len(draw.Tiers) == 0 {
		return nil, ErrEmptyPrizeSet.WithSourceURL(sourceURL)
	}

	return draw, nil
}

// parseDrawnNumbers reads the main and bonus numbers out of the numbers
// row and validates them against the game specification.
func parseDrawnNumbers(spec *GameSpec, row []string, draw *Draw) error {
	bonusIndex := -1
	for i, cell := range row {
		if compactCell(cell) == bonusMarker {
			bonusIndex = i
			break
		}
	}
	if bonusIndex < 0 {
		return ErrParseFailed.WithDetails("bonus marker missing from numbers row")
	}

	main, err := parseNumberCells(row[1:bonusIndex])
	if err != nil {
		return err
	}
	bonus, err := parseNumberCells(row[bonusIndex+1:])
	if err != nil {
		return err
	}

	if len(main) != spec.Picks {
		return ErrParseFailed.WithDetailsf("expected %d main numbers, got %d", spec.Picks, len(main))
	}
	if len(bonus) != spec.BonusCount {
		return ErrParseFailed.WithDetailsf("expected %d bonus numbers, got %d", spec.BonusCount, len(bonus))
	}
	for _, n := range main {
		if n < spec.MinNumber || n > spec.MaxNumber {
			return ErrParseFailed.WithDetailsf("drawn number %d is outside %d-%d", n, spec.MinNumber, spec.MaxNumber)
		}
	}
	for _, n := range bonus {
		if n < spec.MinNumber || n > spec.MaxNumber {
			return ErrParseFailed.WithDetailsf("bonus number %d is outside %d-%d", n, spec.MinNumber, spec.MaxNumber)
		}
	}

	draw.Numbers = main
	draw.Bonus = bonus
	return nil
}

func parseNumberCells(cells []string) ([]int, error) {
	numbers := make([]int, 0, len(cells))
	for _, cell := range cells {
		n, err := parseNumberToken(cell)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// cellAt reads a cell that may be absent in short rows.
func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// withSource stamps the source URL onto checker errors passing through.
func withSource(err error, sourceURL string) error {
	if lerr, ok := err.(*LotteryError); ok && lerr.SourceURL == "" {
		return lerr.WithSourceURL(sourceURL)
	}
	return err
}
