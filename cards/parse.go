package cards

import (
	"errors"
	"fmt"
	"strings"
)

// Token grammar: exactly two characters, rank then suit.
// Rank is one of 2-9, T, J, Q, K, A (case insensitive).
// Suit is one of s, h, d, c (case insensitive).
// Anything else fails with one of the named errors below.
var (
	ErrTokenLength = errors.New("card token must be exactly two characters")
	ErrTokenRank   = errors.New("unrecognized rank character")
	ErrTokenSuit   = errors.New("unrecognized suit character")
)

// Parse decodes a single two-character card token.
func Parse(token string) (Card, error) {
	if len(token) != 2 {
		return Card{}, fmt.Errorf("%q: %w", token, ErrTokenLength)
	}

	rank, ok := parseRank(token[0])
	if !ok {
		return Card{}, fmt.Errorf("%q: %w", token, ErrTokenRank)
	}

	suit, ok := parseSuit(token[1])
	if !ok {
		return Card{}, fmt.Errorf("%q: %w", token, ErrTokenSuit)
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// ParseMany decodes a concatenated sequence of card tokens, e.g. "AsKsQh".
func ParseMany(tokens string) ([]Card, error) {
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("%q: %w", tokens, ErrTokenLength)
	}

	parsed := make([]Card, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		card, err := Parse(tokens[i : i+2])
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, card)
	}
	return parsed, nil
}

// MustParse is like Parse but panics on malformed input. For tests and
// hardcoded tokens only.
func MustParse(token string) Card {
	card, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return card
}

// Tokens renders a card slice as a space-separated token list.
func Tokens(cards []Card) string {
	var b strings.Builder
	for i, c := range cards {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Token())
	}
	return b.String()
}

func parseRank(ch byte) (Rank, bool) {
	switch ch {
	case '2', '3', '4', '5', '6', '7', '8', '9':
		return Rank(ch - '0'), true
	case 'T', 't':
		return Ten, true
	case 'J', 'j':
		return Jack, true
	case 'Q', 'q':
		return Queen, true
	case 'K', 'k':
		return King, true
	case 'A', 'a':
		return Ace, true
	default:
		return 0, false
	}
}

func parseSuit(ch byte) (Suit, bool) {
	switch ch {
	case 'S', 's':
		return Spades, true
	case 'H', 'h':
		return Hearts, true
	case 'D', 'd':
		return Diamonds, true
	case 'C', 'c':
		return Clubs, true
	default:
		return 0, false
	}
}
