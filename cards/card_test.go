package cards

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Card
		wantErr  error
	}{
		{name: "ace of spades", input: "As", expected: Card{Rank: Ace, Suit: Spades}},
		{name: "ten of diamonds", input: "Td", expected: Card{Rank: Ten, Suit: Diamonds}},
		{name: "deuce of clubs", input: "2c", expected: Card{Rank: Two, Suit: Clubs}},
		{name: "nine of hearts", input: "9h", expected: Card{Rank: Nine, Suit: Hearts}},
		{name: "case insensitive", input: "kH", expected: Card{Rank: King, Suit: Hearts}},
		{name: "empty", input: "", wantErr: ErrTokenLength},
		{name: "too short", input: "A", wantErr: ErrTokenLength},
		{name: "too long", input: "Asd", wantErr: ErrTokenLength},
		{name: "bad rank", input: "1s", wantErr: ErrTokenRank},
		{name: "bad rank letter", input: "Xs", wantErr: ErrTokenRank},
		{name: "bad suit", input: "Ax", wantErr: ErrTokenSuit},
		{name: "suit first", input: "sA", wantErr: ErrTokenRank},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	// Every valid card must survive encode/decode and produce exactly one token.
	seen := make(map[string]Card)
	for rank := Two; rank <= Ace; rank++ {
		for _, suit := range []Suit{Spades, Hearts, Diamonds, Clubs} {
			card := NewCard(rank, suit)
			token := card.Token()
			if len(token) != 2 {
				t.Fatalf("Token() = %q, want two characters", token)
			}
			if prev, dup := seen[token]; dup {
				t.Fatalf("token %q produced by both %v and %v", token, prev, card)
			}
			seen[token] = card

			decoded, err := Parse(token)
			if err != nil {
				t.Fatalf("Parse(Token(%v)) error: %v", card, err)
			}
			if decoded != card {
				t.Errorf("Parse(Token(%v)) = %v", card, decoded)
			}
		}
	}
	if len(seen) != 52 {
		t.Errorf("expected 52 distinct tokens, got %d", len(seen))
	}
}

func TestParseMany(t *testing.T) {
	got, err := ParseMany("AsKsQh")
	if err != nil {
		t.Fatalf("ParseMany() error: %v", err)
	}
	want := []Card{
		{Rank: Ace, Suit: Spades},
		{Rank: King, Suit: Spades},
		{Rank: Queen, Suit: Hearts},
	}
	if len(got) != len(want) {
		t.Fatalf("ParseMany() returned %d cards, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseMany()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := ParseMany("AsK"); !errors.Is(err, ErrTokenLength) {
		t.Errorf("ParseMany(odd length) error = %v, want ErrTokenLength", err)
	}
	if _, err := ParseMany("AsXs"); !errors.Is(err, ErrTokenRank) {
		t.Errorf("ParseMany(bad rank) error = %v, want ErrTokenRank", err)
	}
}

func TestCardJSON(t *testing.T) {
	card := NewCard(Queen, Diamonds)
	data, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(data) != `"Qd"` {
		t.Errorf("Marshal() = %s, want %q", data, "Qd")
	}

	var decoded Card
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded != card {
		t.Errorf("Unmarshal() = %v, want %v", decoded, card)
	}

	// Malformed tokens must fail, never produce a default card.
	var bad Card
	if err := json.Unmarshal([]byte(`"zz"`), &bad); err == nil {
		t.Error("Unmarshal(malformed) succeeded, want error")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustParse() should panic on invalid input")
		}
	}()
	MustParse("bogus")
}
