package takarakuji

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// yenPrinter renders amounts with Japanese digit grouping.
var yenPrinter = message.NewPrinter(language.Japanese)

// CheckRequest asks for one ticket to be evaluated against a draw.
type CheckRequest struct {
	Game   Game   `json:"game"`   // Which game the ticket belongs to
	Period int    `json:"period"` // Draw period, 0 means latest
	Ticket Ticket `json:"ticket"` // The ticket to evaluate
}

// Validate checks the request before any provider traffic happens.
func (r *CheckRequest) Validate() error {
	spec, err := r.Game.Spec()
	if err != nil {
		return err
	}
	if err := ValidatePeriod(r.Period); err != nil {
		return err
	}
	return r.Ticket.Validate(spec)
}

// BatchCheckRequest asks for several tickets to be evaluated against the
// same draw.
type BatchCheckRequest struct {
	Game    Game     `json:"game"`
	Period  int      `json:"period"`
	Tickets []Ticket `json:"tickets"`
}

// Validate checks the batch request before any provider traffic happens.
func (r *BatchCheckRequest) Validate() error {
	spec, err := r.Game.Spec()
	if err != nil {
		return err
	}
	if err := ValidatePeriod(r.Period); err != nil {
		return err
	}
	if len(r.Tickets) == 0 {
		return ErrInvalidParameters.WithDetails("no tickets in batch")
	}
	if len(r.Tickets) > MaxBatchTickets {
		return ErrInvalidParameters.WithDetailsf("batch holds %d tickets, limit is %d", len(r.Tickets), MaxBatchTickets)
	}
	for i := range r.Tickets {
		if err := r.Tickets[i].Validate(spec); err != nil {
			return err
		}
	}
	return nil
}

// TierHit is one prize tier a ticket satisfied.
type TierHit struct {
	TierID          string `json:"tier_id"`                    // Normalized tier label
	Label           string `json:"label"`                      // Tier label as published
	WinnersText     string `json:"winners_text,omitempty"`     // Winner count, selection games
	AmountText      string `json:"amount_text"`                // Amount as published
	AmountYen       int64  `json:"amount_yen"`                 // Parsed amount, 0 when unknown
	AmountKnown     bool   `json:"amount_known"`               // Whether AmountYen is meaningful
	GroupCondition  string `json:"group_condition,omitempty"`  // Winning condition text, traditional games
	NumberCondition string `json:"number_condition,omitempty"` // Winning number text, traditional games
}

// TicketResult is the outcome of evaluating one ticket.
type TicketResult struct {
	Game         Game      `json:"game"`
	Period       int       `json:"period"`
	Ticket       Ticket    `json:"ticket"`
	Winning      bool      `json:"winning"`
	Rank         string    `json:"rank,omitempty"`          // Selection games: the single rank hit
	MatchedMain  []int     `json:"matched_main,omitempty"`  // Selection games: main numbers hit
	MatchedBonus []int     `json:"matched_bonus,omitempty"` // Selection games: bonus numbers hit
	Hits         []TierHit `json:"hits,omitempty"`          // Every tier satisfied; traditional tickets may hold several
	TotalYen     int64     `json:"total_yen"`               // Sum of the parseable hit amounts
	TotalKnown   bool      `json:"total_known"`             // False when a hit had no parseable amount
	UnknownHits  int       `json:"unknown_hits,omitempty"`  // Hits whose amount could not be parsed
}

// TotalDisplay renders the payout for humans, flagging amounts the
// provider published as text this build could not price.
func (r *TicketResult) TotalDisplay() string {
	if !r.Winning {
		return "0円"
	}
	if r.TotalKnown {
		return yenPrinter.Sprintf("%d円", r.TotalYen)
	}
	if r.TotalYen > 0 {
		return yenPrinter.Sprintf("%d円", r.TotalYen) + fmt.Sprintf("（ほか%d件は金額不明）", r.UnknownHits)
	}
	return "金額不明"
}

// CheckSummary aggregates a batch of ticket results against one draw.
type CheckSummary struct {
	Game       Game           `json:"game"`
	Period     int            `json:"period"`
	Draw       *Draw          `json:"draw,omitempty"`
	Results    []TicketResult `json:"results"`
	Tickets    int            `json:"tickets"`
	Wins       int            `json:"wins"`
	TotalYen   int64          `json:"total_yen"`
	TotalKnown bool           `json:"total_known"`
}

// WinRate returns the share of winning tickets as a percentage.
func (s *CheckSummary) WinRate() float64 {
	if s.Tickets == 0 {
		return 0.0
	}
	return float64(s.Wins) / float64(s.Tickets) * 100.0
}

// Summary renders the one-line digest stored with check history.
func (s *CheckSummary) Summary() string {
	return fmt.Sprintf("%d枚 | %d当せん | 合計 %s",
		s.Tickets, s.Wins, yenPrinter.Sprintf("%d円", s.TotalYen))
}
