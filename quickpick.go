package takarakuji

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
)

// SecureTicketGenerator builds random tickets using crypto/rand
type SecureTicketGenerator struct{}

// NewSecureTicketGenerator creates a new secure ticket generator
func NewSecureTicketGenerator() *SecureTicketGenerator {
	return &SecureTicketGenerator{}
}

// GenerateInRange generates a secure random number within the specified range [min, max] (inclusive)
func (g *SecureTicketGenerator) GenerateInRange(min, max int) (int, error) {
	if min > max {
		return 0, ErrInvalidParameters.WithDetailsf("range %d..%d is empty", min, max)
	}

	// Handle edge case where min == max
	if min == max {
		return min, nil
	}

	rangeSize := max - min + 1

	randomBig, err := rand.Int(rand.Reader, big.NewInt(int64(rangeSize)))
	if err != nil {
		return 0, ErrSystemError.WithDetails("random source failed").WithCause(err)
	}

	return int(randomBig.Int64()) + min, nil
}

// GenerateTicket builds a random valid ticket for a game. Selection
// games get distinct numbers in the game's range; traditional games get
// a random group and serial.
func (g *SecureTicketGenerator) GenerateTicket(spec *GameSpec) (*Ticket, error) {
	if spec == nil {
		return nil, ErrInvalidParameters.WithDetails("spec is required")
	}

	if spec.Kind == KindSelection {
		return g.generateSelectionTicket(spec)
	}
	return g.generateTraditionalTicket(spec)
}

// generateSelectionTicket draws distinct numbers by rejection, which
// finishes fast because every game's pick count is far below its range.
func (g *SecureTicketGenerator) generateSelectionTicket(spec *GameSpec) (*Ticket, error) {
	seen := make(map[int]struct{}, spec.Picks)
	numbers := make([]int, 0, spec.Picks)
	for len(numbers) < spec.Picks {
		n, err := g.GenerateInRange(spec.MinNumber, spec.MaxNumber)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	ticket := &Ticket{Numbers: numbers}
	if err := ticket.Validate(spec); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (g *SecureTicketGenerator) generateTraditionalTicket(spec *GameSpec) (*Ticket, error) {
	group, err := g.GenerateInRange(1, MaxGroupNumber)
	if err != nil {
		return nil, err
	}

	serialLimit := 1
	for i := 0; i < SerialDigits; i++ {
		serialLimit *= 10
	}
	serial, err := g.GenerateInRange(0, serialLimit-1)
	if err != nil {
		return nil, err
	}

	ticket := &Ticket{
		Group:  fmt.Sprintf("%d", group),
		Serial: padSerial(fmt.Sprintf("%d", serial), SerialDigits),
	}
	if err := ticket.Validate(spec); err != nil {
		return nil, err
	}
	return ticket, nil
}

// QuickPickTicket is a standalone helper for generating one random
// ticket for a game.
func QuickPickTicket(game Game) (*Ticket, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, err
	}
	return NewSecureTicketGenerator().GenerateTicket(spec)
}
