package takarakuji

import (
	"context"
	"time"
)

// Clock supplies the current time. The draw cache takes one so that
// freshness behavior can be tested on a fake timeline.
type Clock func() time.Time

// DrawSource defines the interface for retrieving raw draw payloads from
// the lottery provider. Implementations return the payload decoded to
// UTF-8 together with the URL it came from, so downstream errors can name
// their origin.
type DrawSource interface {
	// FetchIndex retrieves the per-game index file that lists the
	// published draws of a selection game, newest first
	FetchIndex(ctx context.Context, game Game) (payload []byte, sourceURL string, err error)

	// FetchSelectionCSV retrieves the result CSV for one draw of a
	// selection game. Returns a not-found error when the provider has no
	// file for the period
	FetchSelectionCSV(ctx context.Context, game Game, period int) (payload []byte, sourceURL string, err error)

	// FetchTraditionalCSV retrieves the combined CSV carrying the recent
	// draws of a traditional game, newest first
	FetchTraditionalCSV(ctx context.Context, game Game) (payload []byte, sourceURL string, err error)
}

// TicketChecker defines the public surface of the lottery checker.
// All methods are safe for concurrent use.
type TicketChecker interface {
	// CheckTicket evaluates one ticket against a draw. Period 0 means
	// the latest published draw
	CheckTicket(ctx context.Context, req CheckRequest) (*TicketResult, error)

	// CheckTickets evaluates a batch of tickets against the same draw
	// and aggregates the winnings
	CheckTickets(ctx context.Context, req BatchCheckRequest) (*CheckSummary, error)

	// Draw returns the parsed draw for a specific period
	Draw(ctx context.Context, game Game, period int) (*Draw, error)

	// LatestDraw returns the most recent published draw for a game
	LatestDraw(ctx context.Context, game Game) (*Draw, error)
}

// HistoryRecorder receives finished check results for the search
// history feature. Recording is best effort: the checker logs a
// recorder failure but never fails the check over it.
type HistoryRecorder interface {
	RecordResult(ctx context.Context, result *TicketResult) error
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}
