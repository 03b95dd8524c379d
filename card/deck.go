package card

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is an ordered sequence of cards drawn by advancing an index. A deck
// is owned by exactly one hand and is not safe for concurrent use.
type Deck struct {
	cards []Card
	next  int
}

// NewShuffledDeck builds a full 52-card deck shuffled with Fisher-Yates
// using indices from crypto/rand. An error means randomness is unavailable
// and no hand may start.
func NewShuffledDeck() (*Deck, error) {
	cards := orderedCards()
	for i := len(cards) - 1; i > 0; i-- {
		j, err := cryptoIntn(i + 1)
		if err != nil {
			return nil, fmt.Errorf("shuffle deck: %w", err)
		}
		cards[i], cards[j] = cards[j], cards[i]
	}
	return &Deck{cards: cards}, nil
}

// NewDeckFromCards builds a deck with a fixed order, used by scripted
// hands in tests. The slice is copied.
func NewDeckFromCards(cards []Card) *Deck {
	cp := make([]Card, len(cards))
	copy(cp, cards)
	return &Deck{cards: cp}
}

func orderedCards() []Card {
	cards := make([]Card, 0, 52)
	for _, s := range Suits() {
		for r := Two; r <= Ace; r++ {
			cards = append(cards, Card{Rank: r, Suit: s})
		}
	}
	return cards
}

func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Draw returns the next card.
func (d *Deck) Draw() (Card, error) {
	if d.next >= len(d.cards) {
		return Card{}, ErrDeckExhausted
	}
	c := d.cards[d.next]
	d.next++
	return c, nil
}

// DrawN returns the next n cards.
func (d *Deck) DrawN(n int) ([]Card, error) {
	if d.next+n > len(d.cards) {
		return nil, ErrDeckExhausted
	}
	out := make([]Card, n)
	copy(out, d.cards[d.next:d.next+n])
	d.next += n
	return out, nil
}

// Remaining reports how many cards are left to draw.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}
