package takarakuji

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePeriod(t *testing.T) {
	assert.NoError(t, ValidatePeriod(0), "zero means latest")
	assert.NoError(t, ValidatePeriod(1))
	assert.NoError(t, ValidatePeriod(2078))
	assert.ErrorIs(t, ValidatePeriod(-1), ErrInvalidPeriod)
}

func TestNormalizeDigits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "fullwidth digits", input: "１２３", expected: "123"},
		{name: "mixed widths in one token", input: "第２07８回", expected: "第2078回"},
		{name: "no digits", input: "ボーナス数字", expected: "ボーナス数字"},
		{name: "ascii passes through", input: "A1022078.CSV", expected: "A1022078.CSV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeDigits(tt.input))
		})
	}
}

func TestCellNormalization(t *testing.T) {
	// The provider pads cells with ideographic spaces.
	assert.Equal(t, "1等 の前後", normalizeCell("  1等　の前後  "))
	assert.Equal(t, "1等の前後", compactCell("  １等　の前後  "))
	assert.Equal(t, "140229", digitsOnly("組14-02：29番"))
	assert.Equal(t, "", digitsOnly("該当なし"))
}

func TestParseNumberToken(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    int
		expectError bool
	}{
		{name: "plain", input: "22", expected: 22},
		{name: "fullwidth", input: "０７", expected: 7},
		{name: "padded", input: " 41 ", expected: 41},
		{name: "no digits", input: "--", expectError: true},
		{name: "empty", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := parseNumberToken(tt.input)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadNumberCell)
				assert.True(t, IsParseError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestParsePeriodFromTitle(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		expected    int
		expectError bool
	}{
		{name: "loto title", title: "第2078回ロト６", expected: 2078},
		{name: "zero padded", title: "第0539回ミニロト", expected: 539},
		{name: "fullwidth digits", title: "第１０４５回全国自治宝くじ", expected: 1045},
		{name: "no period marker", title: "ロト６", expectError: true},
		{name: "empty title", title: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period, err := parsePeriodFromTitle(tt.title)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadDrawTitle)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, period)
		})
	}
}

func TestPeriodFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected int
		ok       bool
	}{
		{name: "loto6 file", filename: "A1022078.CSV", expected: 2078, ok: true},
		{name: "miniloto file", filename: "A1010539.CSV", expected: 539, ok: true},
		{name: "not a result file", filename: "name.txt", ok: false},
		{name: "wrong shape", filename: "A10.CSV", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period, ok := periodFromFilename(tt.filename)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, period)
			}
		})
	}
}

func TestParseAmountYen(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		known    bool
	}{
		{name: "oku and man units", input: "1億4,000万円", expected: 140_000_000, known: true},
		{name: "man and yen units", input: "1万5000円", expected: 15_000, known: true},
		{name: "plain yen", input: "300円", expected: 300, known: true},
		{name: "fractional oku", input: "1.5億円", expected: 150_000_000, known: true},
		{name: "bare number", input: "6000000", expected: 6_000_000, known: true},
		{name: "grouped digits", input: "100,000円", expected: 100_000, known: true},
		{name: "nobody hit the tier", input: "該当なし", known: false},
		{name: "empty cell", input: "", known: false},
		{name: "free text", input: "当せん金", known: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, known := parseAmountYen(tt.input)
			assert.Equal(t, tt.known, known)
			if tt.known {
				assert.Equal(t, tt.expected, amount)
			} else {
				assert.Zero(t, amount)
			}
		})
	}
}

func TestPadSerial(t *testing.T) {
	assert.Equal(t, "000229", padSerial("229", 6))
	assert.Equal(t, "140229", padSerial("140229", 6))
	assert.Equal(t, "140229", padSerial("140229", 4), "never truncates")
}

func TestNormalizedRank(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		isRank   bool
	}{
		{input: "1等", expected: "1等", isRank: true},
		{input: "１等", expected: "1等", isRank: true},
		{input: "2等　", expected: "2等", isRank: true},
		{input: "1等の前後賞", expected: "1等の前後賞", isRank: false},
		{input: "キャリーオーバー", expected: "キャリーオーバー", isRank: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := normalizedRank(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.isRank, ok)
		})
	}
}

func TestRankInText(t *testing.T) {
	rank, ok := rankInText("１等の前後の番号")
	require.True(t, ok)
	assert.Equal(t, "1等", rank)

	rank, ok = rankInText("2等の組違い同番号")
	require.True(t, ok)
	assert.Equal(t, "2等", rank)

	_, ok = rankInText("各組共通")
	assert.False(t, ok)
}
