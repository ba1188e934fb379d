package takarakuji

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	periodInTitleRe  = regexp.MustCompile(`第0*(\d+)回`)
	resultFileRe     = regexp.MustCompile(`^A\d+\.CSV$`)
	periodInFileRe   = regexp.MustCompile(`^A10\d(\d{4})\.CSV$`)
	amountTokenRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)(億|万|円)`)
	allDigitsRe      = regexp.MustCompile(`^\d+$`)
	digitRunRe       = regexp.MustCompile(`\d+`)
	normalizedRankRe = regexp.MustCompile(`^\d+等$`)
	rankInTextRe     = regexp.MustCompile(`(\d+等)`)
)

// ValidatePeriod validates a draw period parameter. Zero is allowed and
// means the latest published draw.
func ValidatePeriod(period int) error {
	if period < 0 {
		return ErrInvalidPeriod
	}
	return nil
}

// normalizeDigits converts fullwidth digits to their ASCII counterparts.
// Provider payloads mix both freely, even within one cell.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}

// normalizeCell trims a CSV cell and collapses whitespace runs, including
// the ideographic space the provider pads cells with, into single spaces.
// Digits are left alone so display text keeps its published form.
func normalizeCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// compactCell normalizes digits and strips every whitespace rune. Used
// wherever cells are compared rather than displayed.
func compactCell(s string) string {
	s = normalizeDigits(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// digitsOnly keeps the ASCII digits of s, dropping everything else.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range normalizeDigits(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseNumberToken reads the first digit run out of a draw number cell.
// A cell with no digits at all is a parse error.
func parseNumberToken(cell string) (int, error) {
	run := digitRunRe.FindString(normalizeDigits(cell))
	if run == "" {
		return 0, ErrBadNumberCell.WithDetailsf("cell %q is not a number", cell)
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return 0, ErrBadNumberCell.WithDetailsf("cell %q overflows", cell).WithCause(err)
	}
	return n, nil
}

// parsePeriodFromTitle extracts the draw period from a title such as
// 第0539回ミニロト or 第2078回ロト６.
func parsePeriodFromTitle(title string) (int, error) {
	m := periodInTitleRe.FindStringSubmatch(normalizeDigits(title))
	if m == nil {
		return 0, ErrBadDrawTitle.WithDetailsf("title %q", title)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, ErrBadDrawTitle.WithDetailsf("title %q", title)
	}
	return n, nil
}

// isResultFilename reports whether name looks like a published result
// file (A10xNNNN.CSV and friends).
func isResultFilename(name string) bool {
	return resultFileRe.MatchString(compactCell(name))
}

// periodFromFilename extracts the four digit draw period encoded in a
// selection result filename such as A1022078.CSV.
func periodFromFilename(name string) (int, bool) {
	m := periodInFileRe.FindStringSubmatch(compactCell(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseAmountYen converts a provider amount text into yen. The provider
// writes amounts as unit expressions (1億4,000万円), plain yen (300円),
// or 該当なし when nobody hit the tier. The second return value reports
// whether an amount is actually present.
func parseAmountYen(text string) (int64, bool) {
	s := compactCell(text)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.Contains(s, "該当なし") {
		return 0, false
	}

	var total float64
	matched := false
	for _, m := range amountTokenRe.FindAllStringSubmatch(s, -1) {
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		matched = true
		switch m[2] {
		case "億":
			total += val * 1e8
		case "万":
			total += val * 1e4
		default:
			total += val
		}
	}
	if matched {
		return int64(math.Round(total)), true
	}

	// Some feeds carry a bare number with no unit suffix.
	if allDigitsRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// padSerial left-pads a serial with zeros to the given width.
func padSerial(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// normalizedRank rewrites a raw rank label such as "１等" or "2等　"
// into its compact ASCII form. The second return value reports whether
// the label is a plain numbered rank at all.
func normalizedRank(label string) (string, bool) {
	c := compactCell(label)
	return c, normalizedRankRe.MatchString(c)
}

// rankInText extracts the first rank reference (1等, 2等, ...) embedded
// in a longer condition text.
func rankInText(text string) (string, bool) {
	m := rankInTextRe.FindStringSubmatch(compactCell(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}
