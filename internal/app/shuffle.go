package app

import (
	"html"
	"math/rand"
)

// Shuffler permutes n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

// Shuffle uses the package-level source, which is safe for concurrent use.
func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// DefaultShuffler is used when no shuffler is injected.
var DefaultShuffler Shuffler = globalShuffler{}

// Shuffle returns a permuted copy of items; the input is left untouched.
func Shuffle[T any](items []T, shuffler Shuffler) []T {
	shuffled := make([]T, len(items))
	copy(shuffled, items)
	if shuffler == nil {
		shuffler = DefaultShuffler
	}
	shuffler.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// DecodeHTML resolves HTML entities such as &quot; and &#039;.
func DecodeHTML(s string) string {
	return html.UnescapeString(s)
}
