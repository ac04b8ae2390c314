// Package moderation filters request text against a banned-word list.
package moderation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/errandly/backend/internal/domain"
)

// DefaultBannedWords is the stock list applied when no custom list is
// configured. Matching is case-insensitive and whole-word only, so a
// banned word inside another word ("ass" in "class") never matches.
var DefaultBannedWords = []string{
	"ass",
	"bastard",
	"bitch",
	"damn",
	"piss",
	"crap",
	"whore",
	"slut",
}

// Filter checks free-form text for banned words.
// The zero value is not usable; construct with NewFilter.
type Filter struct {
	words    []string
	patterns []*regexp.Regexp
}

// NewFilter compiles a word-boundary pattern per banned word. Words that
// are empty after trimming are skipped. Returns an error if a word
// cannot be compiled into a pattern (e.g. a lone backslash).
func NewFilter(words []string) (*Filter, error) {
	f := &Filter{}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		p, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("moderation.NewFilter: compile %q: %w", w, err)
		}
		f.words = append(f.words, w)
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// MustNewFilter is NewFilter that panics on error. Use only with
// compile-time word lists.
func MustNewFilter(words []string) *Filter {
	f, err := NewFilter(words)
	if err != nil {
		panic(err)
	}
	return f
}

// ValidateRequestText returns a wrapped domain.ErrValidation naming the
// first banned word found as a whole word in text, or nil if the text is
// clean.
func (f *Filter) ValidateRequestText(text string) error {
	for i, p := range f.patterns {
		if p.MatchString(text) {
			return fmt.Errorf("%w: request contains inappropriate language: %q", domain.ErrValidation, f.words[i])
		}
	}
	return nil
}
