package takarakuji

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureTicketGenerator_GenerateInRange(t *testing.T) {
	generator := NewSecureTicketGenerator()

	t.Run("values stay inside the range", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			n, err := generator.GenerateInRange(1, 43)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, 43)
		}
	})

	t.Run("degenerate range", func(t *testing.T) {
		n, err := generator.GenerateInRange(7, 7)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})

	t.Run("empty range is rejected", func(t *testing.T) {
		_, err := generator.GenerateInRange(10, 1)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})
}

func TestSecureTicketGenerator_SelectionTickets(t *testing.T) {
	generator := NewSecureTicketGenerator()

	for _, spec := range SelectionGames() {
		t.Run(string(spec.Game), func(t *testing.T) {
			for i := 0; i < 50; i++ {
				ticket, err := generator.GenerateTicket(spec)
				require.NoError(t, err)
				require.NoError(t, ticket.Validate(spec))

				require.Len(t, ticket.Numbers, spec.Picks)
				for j := 1; j < len(ticket.Numbers); j++ {
					assert.Greater(t, ticket.Numbers[j], ticket.Numbers[j-1],
						"numbers come out sorted and distinct")
				}
			}
		})
	}
}

func TestSecureTicketGenerator_TraditionalTickets(t *testing.T) {
	generator := NewSecureTicketGenerator()
	spec := mustSpec(t, GameJumbo)

	for i := 0; i < 50; i++ {
		ticket, err := generator.GenerateTicket(spec)
		require.NoError(t, err)
		require.NoError(t, ticket.Validate(spec))
		assert.Len(t, ticket.Serial, SerialDigits)
	}
}

func TestQuickPickTicket(t *testing.T) {
	ticket, err := QuickPickTicket(GameLoto7)
	require.NoError(t, err)
	assert.Len(t, ticket.Numbers, 7)

	_, err = QuickPickTicket(Game("bogus"))
	assert.ErrorIs(t, err, ErrInvalidGame)
}
