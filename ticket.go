package takarakuji

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var ticketSplitRe = regexp.MustCompile(`[\s,;/]+`)

// Ticket is one lottery ticket. Selection tickets carry picked numbers,
// traditional tickets carry the preprinted group and serial.
type Ticket struct {
	Numbers []int  `json:"numbers,omitempty"` // Picked numbers, sorted
	Group   string `json:"group,omitempty"`   // Group digits, e.g. 88
	Serial  string `json:"serial,omitempty"`  // Serial digits, e.g. 140229
}

// ParseSelectionTicket reads a user supplied number sequence. Tokens may
// be separated by spaces, commas, semicolons or slashes, and fullwidth
// digits are accepted. The returned ticket is canonical: numbers sorted
// ascending.
func ParseSelectionTicket(spec *GameSpec, raw string) (Ticket, error) {
	if strings.TrimSpace(raw) == "" {
		return Ticket{}, ErrInvalidTicket.WithDetails("no numbers entered")
	}

	tokens := ticketSplitRe.Split(strings.TrimSpace(raw), -1)
	numbers := make([]int, 0, spec.Picks)
	for _, token := range tokens {
		if token == "" {
			continue
		}
		run := digitRunRe.FindString(normalizeDigits(token))
		if run == "" {
			return Ticket{}, ErrInvalidTicket.WithDetailsf("token %q is not a number", token)
		}
		n, err := strconv.Atoi(run)
		if err != nil {
			return Ticket{}, ErrInvalidTicket.WithDetailsf("token %q is not a number", token).WithCause(err)
		}
		numbers = append(numbers, n)
	}

	sort.Ints(numbers)
	ticket := Ticket{Numbers: numbers}
	if err := ticket.Validate(spec); err != nil {
		return Ticket{}, err
	}
	return ticket, nil
}

// ParseTraditionalTicket reads a user supplied group and serial. Only the
// digits count; anything else the user typed is dropped.
func ParseTraditionalTicket(spec *GameSpec, groupRaw, serialRaw string) (Ticket, error) {
	ticket := Ticket{
		Group:  digitsOnly(groupRaw),
		Serial: digitsOnly(serialRaw),
	}
	if err := ticket.Validate(spec); err != nil {
		return Ticket{}, err
	}
	return ticket, nil
}

// Validate checks the ticket against a game specification.
func (t Ticket) Validate(spec *GameSpec) error {
	if spec == nil {
		return ErrInvalidGame
	}
	switch spec.Kind {
	case KindSelection:
		return t.validateSelection(spec)
	case KindTraditional:
		return t.validateTraditional()
	default:
		return ErrInvalidGame.WithDetailsf("game %q has unknown kind %q", spec.Game, spec.Kind)
	}
}

func (t Ticket) validateSelection(spec *GameSpec) error {
	if len(t.Numbers) != spec.Picks {
		return ErrInvalidTicket.WithDetailsf("%s needs exactly %d numbers, got %d", spec.Label, spec.Picks, len(t.Numbers))
	}

	seen := make(map[int]bool, len(t.Numbers))
	for _, n := range t.Numbers {
		if n < spec.MinNumber || n > spec.MaxNumber {
			return ErrInvalidTicket.WithDetailsf("number %d is outside %d-%d", n, spec.MinNumber, spec.MaxNumber)
		}
		if seen[n] {
			return ErrInvalidTicket.WithDetailsf("number %d appears twice", n)
		}
		seen[n] = true
	}
	return nil
}

func (t Ticket) validateTraditional() error {
	if t.Group == "" {
		return ErrInvalidTicket.WithDetails("no group entered")
	}
	if t.Serial == "" {
		return ErrInvalidTicket.WithDetails("no serial entered")
	}
	if len(t.Serial) != SerialDigits {
		return ErrInvalidTicket.WithDetailsf("serial %q must have exactly %d digits", t.Serial, SerialDigits)
	}

	group, err := strconv.Atoi(t.Group)
	if err != nil || group < 1 || group > MaxGroupNumber {
		return ErrInvalidTicket.WithDetailsf("group %q is outside 1-%d", t.Group, MaxGroupNumber)
	}
	return nil
}

// String renders the ticket the way it appears on the physical slip.
func (t Ticket) String() string {
	if len(t.Numbers) > 0 {
		parts := make([]string, len(t.Numbers))
		for i, n := range t.Numbers {
			parts[i] = fmt.Sprintf("%02d", n)
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprintf("%s組 %s", t.Group, t.Serial)
}
