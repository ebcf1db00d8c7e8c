// Package moderation masks blacklisted words in message content. Matching is
// done on a normalized form of the text (lower case, leet speak folded back,
// punctuation and spaces ignored) so that "B.4.d.g.€r" still hits "badger".
package moderation

import (
	"log/slog"
	"secure-chat/errors"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// TextMapping keeps, for every normalized rune, its index in the original text.
type TextMapping struct {
	Normalized []rune
	OrigIdx    []int
}

// NewModerator builds the automaton over the normalized dictionary. Entries
// rejected by normalizeWord are skipped; errors.ErrEmptyWords is returned
// when none is left.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if pattern := normalizeWord(word); len(pattern) > 0 {
			patterns = append(patterns, pattern)
		}
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	log.Debug("Moderation automaton built", "patterns", len(patterns))
	return &Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor replaces every rune of a forbidden word with the censored character,
// leaving the surrounding text untouched. It also returns the normalized words
// that matched, in order of appearance.
func (m *Moderator) Censor(original string) (string, []string) {
	mapping := m.normalize(original)
	if len(mapping.Normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.Normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var words []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.OrigIdx) {
			continue
		}

		// Noise between two matched runes is masked as well
		origStart := mapping.OrigIdx[normStart]
		origEnd := mapping.OrigIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}
	return string(origRunes), words
}

func (m *Moderator) normalize(input string) TextMapping {
	var mapping TextMapping
	for i, r := range []rune(input) {
		if folded, ok := fold(r); ok {
			mapping.Normalized = append(mapping.Normalized, folded)
			mapping.OrigIdx = append(mapping.OrigIdx, i)
		}
	}
	return mapping
}

// normalizeWord returns nil for entries that would match too broadly: fewer
// than two runes once folded, or no letter at all in the written word.
func normalizeWord(word string) []rune {
	var out []rune
	hasLetter := false
	for _, r := range word {
		hasLetter = hasLetter || unicode.IsLetter(r)
		if folded, ok := fold(r); ok {
			out = append(out, folded)
		}
	}
	if !hasLetter || len(out) < 2 {
		return nil
	}
	return out
}

// fold maps r to its matching form, false when r is noise (punctuation,
// space, symbol) and takes no part in a match.
func fold(r rune) (rune, bool) {
	switch r {
	case '4', '@':
		return 'a', true
	case '3', '€':
		return 'e', true
	case '1', '!', '|':
		return 'i', true
	case '0':
		return 'o', true
	case '5', '$':
		return 's', true
	}
	if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
		return 0, false
	}
	return unicode.ToLower(r), true
}
