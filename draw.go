package takarakuji

// GroupRule says how a prize row constrains the ticket group.
type GroupRule string

const (
	// GroupAny pays every group (各組共通 rows and serial-suffix rows).
	GroupAny GroupRule = "any"
	// GroupExact pays a single group (16組).
	GroupExact GroupRule = "exact"
	// GroupSuffix pays groups whose number ends in the given digits
	// (組下1ケタ3組).
	GroupSuffix GroupRule = "suffix"
	// GroupNever marks a group condition this build could not read. A
	// rule carrying it matches no group.
	GroupNever GroupRule = "never"
)

// SerialRule says how a prize row constrains the ticket serial.
type SerialRule string

const (
	// SerialExact requires the full serial to equal the winning number.
	SerialExact SerialRule = "exact"
	// SerialSuffix requires the last N digits to match (下4ケタ).
	SerialSuffix SerialRule = "suffix"
	// SerialAdjacent pays the serials directly before and after a base
	// tier's winning number (前後の番号).
	SerialAdjacent SerialRule = "adjacent"
	// SerialOtherGroup pays the base tier's winning serial in every
	// group except the winning one (組違い同番号).
	SerialOtherGroup SerialRule = "other_group"
)

// RuleTarget is one resolved base row an adjacent or other-group rule
// refers to. Targets are materialized at parse time so matching never
// re-reads the raw rows.
type RuleTarget struct {
	Group      GroupRule `json:"group"`
	GroupValue string    `json:"group_value,omitempty"`
	GroupWidth int       `json:"group_width,omitempty"`
	Serial     string    `json:"serial"` // Winning serial digits of the base row
}

// TierRule is the machine form of one traditional prize row's winning
// condition. The parser materializes it from the provider's condition
// text; the matcher only ever reads this struct.
type TierRule struct {
	Group      GroupRule  `json:"group"`
	GroupValue string     `json:"group_value,omitempty"` // Exact group or group suffix digits
	GroupWidth int        `json:"group_width,omitempty"` // Suffix width in digits
	Serial     SerialRule `json:"serial"`
	SerialValue string    `json:"serial_value,omitempty"` // Winning serial digits
	SerialWidth int       `json:"serial_width,omitempty"` // Suffix width in digits

	// BaseTier and Targets carry the resolved reference rows for
	// adjacent and other-group rules.
	BaseTier string       `json:"base_tier,omitempty"`
	Targets  []RuleTarget `json:"targets,omitempty"`

	// Additive marks whether this tier stacks with other matched tiers
	// when payouts are summed. Every known provider tier stacks.
	Additive bool `json:"additive"`

	// Supported is false when the provider used condition text this
	// build does not understand. Unsupported rules never match but the
	// tier is kept so payout tables stay complete.
	Supported bool `json:"supported"`

	RawGroup  string `json:"raw_group"`  // Condition text as published
	RawNumber string `json:"raw_number"` // Number cell as published
}

// PrizeTier is one prize level of a draw.
type PrizeTier struct {
	TierID      string    `json:"tier_id"`      // Normalized label, e.g. 1等 or 1等の前後賞
	Label       string    `json:"label"`        // Label as published
	WinnersText string    `json:"winners_text"` // Winner count cell, selection games
	AmountText  string    `json:"amount_text"`  // Amount cell as published
	AmountYen   int64     `json:"amount_yen"`   // Parsed amount, 0 when unknown
	AmountKnown bool      `json:"amount_known"` // Whether AmountYen is meaningful
	Rule        *TierRule `json:"rule,omitempty"` // Winning condition, traditional games only
}

// Draw is one parsed draw. Draws are shared between cache readers and
// must be treated as read-only.
type Draw struct {
	Game          Game        `json:"game"`
	Kind          GameKind    `json:"kind"`
	Period        int         `json:"period"`
	Title         string      `json:"title"`
	Subtitle      string      `json:"subtitle,omitempty"` // Traditional campaign name
	DateJP        string      `json:"date_jp"`
	Venue         string      `json:"venue"`
	Numbers       []int       `json:"numbers,omitempty"` // Main numbers, selection games
	Bonus         []int       `json:"bonus,omitempty"`   // Bonus numbers, selection games
	PaymentPeriod string      `json:"payment_period"`
	Carryover     string      `json:"carryover,omitempty"`    // Carryover cell as published
	SalesAmount   string      `json:"sales_amount,omitempty"` // Sales cell as published
	Tiers         []PrizeTier `json:"tiers"`
	SourceURL     string      `json:"source_url"`
}

// Tier finds a prize tier by its normalized label.
func (d *Draw) Tier(tierID string) (*PrizeTier, bool) {
	for i := range d.Tiers {
		if d.Tiers[i].TierID == tierID {
			return &d.Tiers[i], true
		}
	}
	return nil, false
}
