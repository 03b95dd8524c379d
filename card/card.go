package card

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rank is the numeric card rank, 2..14 with Ace high. The ace-low straight
// is handled by the evaluator, not here.
type Rank int

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

func (r Rank) Valid() bool { return r >= Two && r <= Ace }

func (r Rank) String() string {
	switch {
	case r >= Two && r <= Nine:
		return fmt.Sprintf("%d", int(r))
	case r == Ten:
		return "T"
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	}
	return "?"
}

// ParseRank accepts "2".."9", "T"/"10", "J", "Q", "K", "A".
func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "2":
		return Two, nil
	case "3":
		return Three, nil
	case "4":
		return Four, nil
	case "5":
		return Five, nil
	case "6":
		return Six, nil
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "T", "10":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "A":
		return Ace, nil
	}
	return 0, fmt.Errorf("invalid rank: %q", s)
}

// Suit is one of "h", "d", "c", "s".
type Suit string

const (
	Hearts   Suit = "h"
	Diamonds Suit = "d"
	Clubs    Suit = "c"
	Spades   Suit = "s"
)

func Suits() []Suit { return []Suit{Hearts, Diamonds, Clubs, Spades} }

func (s Suit) Valid() bool {
	return s == Hearts || s == Diamonds || s == Clubs || s == Spades
}

func ParseSuit(s string) (Suit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h":
		return Hearts, nil
	case "d":
		return Diamonds, nil
	case "c":
		return Clubs, nil
	case "s":
		return Spades, nil
	}
	return "", fmt.Errorf("invalid suit: %q", s)
}

// Card is an immutable playing card value.
type Card struct {
	Rank Rank
	Suit Suit
}

// String renders the compact two-character form, e.g. "As", "Td", "9c".
func (c Card) String() string {
	return c.Rank.String() + string(c.Suit)
}

// Parse reads the compact form produced by String, e.g. "As" or "10h".
func Parse(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, fmt.Errorf("invalid card: %q", s)
	}
	suit, err := ParseSuit(s[len(s)-1:])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	rank, err := ParseRank(s[:len(s)-1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	return Card{Rank: rank, Suit: suit}, nil
}

// MustParse is Parse for test fixtures and static tables; it panics on a
// malformed card string.
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseAll reads a whitespace-separated card list, e.g. "As Kd 2c".
func ParseAll(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := Parse(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseAll is ParseAll, panicking on malformed input.
func MustParseAll(s string) []Card {
	cards, err := ParseAll(s)
	if err != nil {
		panic(err)
	}
	return cards
}

type cardJSON struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Rank: c.Rank.String(), Suit: string(c.Suit)})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	rank, err := ParseRank(cj.Rank)
	if err != nil {
		return err
	}
	suit, err := ParseSuit(cj.Suit)
	if err != nil {
		return err
	}
	c.Rank = rank
	c.Suit = suit
	return nil
}

// Strings renders a card list in compact form, for logs and persistence.
func Strings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
