// Package prompt draws round prompts from a catalog of weighted cards. The
// catalog itself is an external collaborator; this package only loads,
// validates, and samples it.
package prompt

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/amberparty/roomsync/internal/room"
)

// Card is one catalog entry. A weight of zero means unspecified and defaults
// to 1 at draw time.
type Card struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
}

// Catalog holds the three labeled pools a prompt is assembled from.
type Catalog struct {
	Version   string `json:"version"`
	Modifier  []Card `json:"modifier"`
	Situation []Card `json:"situation"`
	Content   []Card `json:"content"`
}

// ErrEmptyPool is returned when a catalog pool has no cards to draw from.
var ErrEmptyPool = errors.New("prompt: empty catalog pool")

func weightOf(c Card) float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}

// pickWeighted draws one card with probability proportional to its weight:
// a single pass over cumulative weights with a uniform draw in [0, total).
func pickWeighted(cards []Card, rng *rand.Rand) (Card, error) {
	if len(cards) == 0 {
		return Card{}, ErrEmptyPool
	}
	total := 0.0
	for _, c := range cards {
		total += weightOf(c)
	}
	r := rng.Float64() * total
	for _, c := range cards {
		r -= weightOf(c)
		if r <= 0 {
			return c, nil
		}
	}
	return cards[len(cards)-1], nil
}

// Build assembles a prompt by drawing one card from each pool and
// concatenating their texts in modifier-situation-content order.
func Build(c *Catalog, rng *rand.Rand) (room.Prompt, error) {
	m, err := pickWeighted(c.Modifier, rng)
	if err != nil {
		return room.Prompt{}, fmt.Errorf("modifier pool: %w", err)
	}
	s, err := pickWeighted(c.Situation, rng)
	if err != nil {
		return room.Prompt{}, fmt.Errorf("situation pool: %w", err)
	}
	ct, err := pickWeighted(c.Content, rng)
	if err != nil {
		return room.Prompt{}, fmt.Errorf("content pool: %w", err)
	}

	return room.Prompt{
		ModifierID:  m.ID,
		SituationID: s.ID,
		ContentID:   ct.ID,
		Text:        m.Text + s.Text + ct.Text,
	}, nil
}

// Validate checks the catalog against the schema the game relies on.
func Validate(c *Catalog) error {
	if c.Version == "" {
		return errors.New("prompt: catalog version missing")
	}
	pools := map[string][]Card{
		"modifier":  c.Modifier,
		"situation": c.Situation,
		"content":   c.Content,
	}
	for name, cards := range pools {
		if len(cards) == 0 {
			return fmt.Errorf("prompt: pool %s is empty", name)
		}
		for i, card := range cards {
			if card.ID == "" || card.Text == "" {
				return fmt.Errorf("prompt: pool %s card %d missing id or text", name, i)
			}
			if card.Weight < 0 {
				return fmt.Errorf("prompt: pool %s card %s has negative weight", name, card.ID)
			}
		}
	}
	return nil
}
