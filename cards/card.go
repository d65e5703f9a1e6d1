// Package cards provides playing card types and the compact two-character
// token codec used on the wire (e.g. "As", "Td", "9h").
package cards

import "fmt"

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// Letter returns the lowercase wire letter for the suit
func (s Suit) Letter() byte {
	switch s {
	case Spades:
		return 's'
	case Hearts:
		return 'h'
	case Diamonds:
		return 'd'
	case Clubs:
		return 'c'
	default:
		return '?'
	}
}

// String returns the display symbol for the suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Letter returns the wire character for the rank (Ten is "T")
func (r Rank) Letter() byte {
	switch r {
	case Ten:
		return 'T'
	case Jack:
		return 'J'
	case Queen:
		return 'Q'
	case King:
		return 'K'
	case Ace:
		return 'A'
	default:
		if r >= Two && r <= Nine {
			return byte('0' + int(r))
		}
		return '?'
	}
}

// String returns the string representation of a rank
func (r Rank) String() string {
	return string(r.Letter())
}

// Card represents a playing card
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// Token returns the canonical two-character wire encoding, e.g. "As" or "9h".
// Every valid card has exactly one token.
func (c Card) Token() string {
	return string([]byte{c.Rank.Letter(), c.Suit.Letter()})
}

// String returns the display representation of a card (e.g. "A♠")
func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// MarshalJSON encodes the card as its wire token.
func (c Card) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.Token() + `"`), nil
}

// UnmarshalJSON decodes a wire token. Malformed tokens are an error, never a
// zero-value card.
func (c *Card) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("card token must be a JSON string, got %s", data)
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
