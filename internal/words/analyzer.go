package words

import "strings"

// Analyzer computes word frequencies for page text.
// The zero value is not usable; construct with NewAnalyzer.
//
// Design decision: The stopword set is fixed at construction rather than
// passed per call because:
//  1. Every task in a crawl uses the same set, built once from config
//  2. An immutable analyzer needs no locking across crawl workers
//  3. Set lookups stay allocation-free on the hot path
type Analyzer struct {
	// stopwords is the set of words excluded from frequency tables.
	stopwords map[string]struct{}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithStopwords replaces the default stopword list entirely.
// Words are lowercased before entering the set.
func WithStopwords(stopwords ...string) Option {
	return func(a *Analyzer) {
		a.stopwords = make(map[string]struct{}, len(stopwords))
		for _, w := range stopwords {
			a.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithExtraStopwords adds words to the current stopword set.
// Useful for site-specific noise like navigation labels.
func WithExtraStopwords(stopwords ...string) Option {
	return func(a *Analyzer) {
		for _, w := range stopwords {
			a.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewAnalyzer creates an Analyzer with the default English stopword list.
// Options are applied in order, so WithStopwords followed by
// WithExtraStopwords builds a replacement set and then extends it.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		stopwords: make(map[string]struct{}, len(defaultStopwords)),
	}
	for _, w := range defaultStopwords {
		a.stopwords[w] = struct{}{}
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Frequencies computes the word-frequency table for the given text:
// lowercase, delete every character outside the ASCII letter/space set,
// split on space runs, drop stopwords, count the rest.
//
// Deleting rather than replacing non-letter characters means words separated
// only by punctuation or line breaks merge ("foo-bar" counts as "foobar").
// The returned map is never nil.
func (a *Analyzer) Frequencies(text string) map[string]int {
	freq := make(map[string]int)

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'a' && c <= 'z' || c == ' ':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}

	for _, word := range strings.Fields(b.String()) {
		if _, ok := a.stopwords[word]; ok {
			continue
		}
		freq[word]++
	}

	return freq
}

// IsStopword reports whether the analyzer would exclude the given word.
func (a *Analyzer) IsStopword(word string) bool {
	_, ok := a.stopwords[strings.ToLower(word)]
	return ok
}
