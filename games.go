package takarakuji

import "strings"

// Game identifies a supported lottery game. The value doubles as the
// provider's URL path segment for that game.
type Game string

// Selection games, where players pick their own numbers.
const (
	GameMiniLoto Game = "miniloto"
	GameLoto6    Game = "loto6"
	GameLoto7    Game = "loto7"
)

// Traditional games, where tickets carry a preprinted group and serial.
const (
	GameZenkoku    Game = "zenkoku"
	GameJumbo      Game = "jumbo"
	GameTokyo      Game = "tokyo"
	GameKinki      Game = "kinki"
	GameChiiki     Game = "chiiki"
	GameKCT        Game = "kct"
	GameNishinihon Game = "nishinihon"
)

// GameKind separates the two game families, which differ in ticket shape,
// provider payload format and matching semantics.
type GameKind string

const (
	KindSelection   GameKind = "selection"
	KindTraditional GameKind = "traditional"
)

// RankRule describes one row of a selection game's rank table. Rules are
// evaluated in order and the first hit wins, so a ticket lands in exactly
// one rank.
type RankRule struct {
	TierID     string `json:"tier_id"`     // Normalized rank label, e.g. 2等
	Matched    int    `json:"matched"`     // Required count of matched main numbers
	NeedsBonus bool   `json:"needs_bonus"` // Whether at least one bonus number must match
}

// GameSpec describes a supported game.
type GameSpec struct {
	Game       Game     `json:"game"`        // Game key, also the provider path segment
	Kind       GameKind `json:"kind"`        // Game family
	Label      string   `json:"label"`       // Display label
	JPLabel    string   `json:"jp_label"`    // Provider's Japanese label
	Picks      int      `json:"picks"`       // Numbers per ticket (selection only)
	MinNumber  int      `json:"min_number"`  // Lowest pickable number (selection only)
	MaxNumber  int      `json:"max_number"`  // Highest pickable number (selection only)
	BonusCount int      `json:"bonus_count"` // Bonus numbers per draw (selection only)
	FilePrefix string   `json:"-"`           // Digit after A10 in result filenames
	Ranks      []RankRule `json:"-"`
}

var gameSpecs = map[Game]*GameSpec{
	GameMiniLoto: {
		Game:       GameMiniLoto,
		Kind:       KindSelection,
		Label:      "Mini Loto",
		JPLabel:    "ミニロト",
		Picks:      5,
		MinNumber:  1,
		MaxNumber:  31,
		BonusCount: 1,
		FilePrefix: "1",
		Ranks: []RankRule{
			{TierID: "1等", Matched: 5},
			{TierID: "2等", Matched: 4, NeedsBonus: true},
			{TierID: "3等", Matched: 4},
			{TierID: "4等", Matched: 3},
		},
	},
	GameLoto6: {
		Game:       GameLoto6,
		Kind:       KindSelection,
		Label:      "Loto 6",
		JPLabel:    "ロト６",
		Picks:      6,
		MinNumber:  1,
		MaxNumber:  43,
		BonusCount: 1,
		FilePrefix: "2",
		Ranks: []RankRule{
			{TierID: "1等", Matched: 6},
			{TierID: "2等", Matched: 5, NeedsBonus: true},
			{TierID: "3等", Matched: 5},
			{TierID: "4等", Matched: 4},
			{TierID: "5等", Matched: 3},
		},
	},
	GameLoto7: {
		Game:       GameLoto7,
		Kind:       KindSelection,
		Label:      "Loto 7",
		JPLabel:    "ロト７",
		Picks:      7,
		MinNumber:  1,
		MaxNumber:  37,
		BonusCount: 2,
		FilePrefix: "3",
		Ranks: []RankRule{
			{TierID: "1等", Matched: 7},
			{TierID: "2等", Matched: 6, NeedsBonus: true},
			{TierID: "3等", Matched: 6},
			{TierID: "4等", Matched: 5},
			{TierID: "5等", Matched: 4},
			{TierID: "6等", Matched: 3, NeedsBonus: true},
		},
	},
	GameZenkoku: {
		Game:    GameZenkoku,
		Kind:    KindTraditional,
		Label:   "National",
		JPLabel: "全国自治",
	},
	GameJumbo: {
		Game:    GameJumbo,
		Kind:    KindTraditional,
		Label:   "Jumbo",
		JPLabel: "ジャンボ",
	},
	GameTokyo: {
		Game:    GameTokyo,
		Kind:    KindTraditional,
		Label:   "Tokyo",
		JPLabel: "東京都",
	},
	GameKinki: {
		Game:    GameKinki,
		Kind:    KindTraditional,
		Label:   "Kinki",
		JPLabel: "近畿",
	},
	GameChiiki: {
		Game:    GameChiiki,
		Kind:    KindTraditional,
		Label:   "Regional Medical",
		JPLabel: "地域医療等振興自治",
	},
	GameKCT: {
		Game:    GameKCT,
		Kind:    KindTraditional,
		Label:   "Kanto/Chubu/Tohoku",
		JPLabel: "関東・中部・東北自治",
	},
	GameNishinihon: {
		Game:    GameNishinihon,
		Kind:    KindTraditional,
		Label:   "West Japan",
		JPLabel: "西日本",
	},
}

// gameOrder fixes the listing order for UI and API responses.
var gameOrder = []Game{
	GameMiniLoto,
	GameLoto6,
	GameLoto7,
	GameZenkoku,
	GameJumbo,
	GameTokyo,
	GameKinki,
	GameChiiki,
	GameKCT,
	GameNishinihon,
}

// ParseGame resolves a user supplied game key.
func ParseGame(s string) (Game, error) {
	g := Game(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := gameSpecs[g]; !ok {
		return "", ErrInvalidGame.WithDetailsf("game %q", s)
	}
	return g, nil
}

// Spec returns the specification for the game.
func (g Game) Spec() (*GameSpec, error) {
	spec, ok := gameSpecs[g]
	if !ok {
		return nil, ErrInvalidGame.WithDetailsf("game %q", string(g))
	}
	return spec, nil
}

// Valid reports whether the game is supported.
func (g Game) Valid() bool {
	_, ok := gameSpecs[g]
	return ok
}

// Games returns all supported games in display order.
func Games() []*GameSpec {
	specs := make([]*GameSpec, 0, len(gameOrder))
	for _, g := range gameOrder {
		specs = append(specs, gameSpecs[g])
	}
	return specs
}

// SelectionGames returns the games where players pick numbers.
func SelectionGames() []*GameSpec {
	return gamesOfKind(KindSelection)
}

// TraditionalGames returns the preprinted ticket games.
func TraditionalGames() []*GameSpec {
	return gamesOfKind(KindTraditional)
}

func gamesOfKind(kind GameKind) []*GameSpec {
	specs := make([]*GameSpec, 0, len(gameOrder))
	for _, g := range gameOrder {
		if spec := gameSpecs[g]; spec.Kind == kind {
			specs = append(specs, spec)
		}
	}
	return specs
}
