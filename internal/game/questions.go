package game

import "math/rand"

// QuestionSource yields the prompts for a game. All of a game's questions
// are selected up front when the room is created, so a round never blocks
// on question selection.
type QuestionSource interface {
	Questions(n int) []string
}

// Deck is a QuestionSource drawing without replacement from a fixed pool,
// in shuffled order. If more questions are requested than the pool holds,
// it wraps around.
type Deck struct {
	pool []string
}

func NewDeck(pool []string) *Deck {
	return &Deck{pool: pool}
}

func (d *Deck) Questions(n int) []string {
	if len(d.pool) == 0 || n <= 0 {
		return nil
	}
	order := rand.Perm(len(d.pool))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = d.pool[order[i%len(order)]]
	}
	return out
}

// DefaultDeck is the built-in prompt pool used when no external question
// provider is wired in.
func DefaultDeck() *Deck {
	return NewDeck([]string{
		"What's the worst possible name for a pet goldfish?",
		"Invent a terrible slogan for a dentist's office.",
		"What's the most useless superpower you can think of?",
		"Write the first line of a novel nobody would finish.",
		"What would be the worst theme for a birthday party?",
		"Name a rejected flavor of sparkling water.",
		"What's the least inspiring thing a coach could yell?",
		"Invent a new national holiday nobody asked for.",
		"What's the worst thing to say in a job interview?",
		"Describe your week as a movie title.",
		"What's a terrible name for a cruise ship?",
		"Invent an awful pizza topping combination.",
		"What would your autobiography be called?",
		"Name a sport that should exist but doesn't.",
		"What's the worst advice to give a new parent?",
		"Invent a useless kitchen gadget.",
	})
}
