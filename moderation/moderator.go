// Package moderation screens reserved nicknames against a censored-word
// list. Matching is done on a normalized form (lowercased, leet-speak
// folded, punctuation stripped) so trivial respellings don't slip past
// registration.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"room-warden/errors"
)

type Moderator struct {
	matcher *goahocorasick.Machine
}

// NewModerator builds the Aho-Corasick automaton over the normalized
// censored words. An empty word list yields a nil Moderator, which
// screens nothing.
func NewModerator(censoredWords []string) (*Moderator, error) {
	if len(censoredWords) == 0 {
		return nil, nil
	}
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if normalized := normalizeRunes([]rune(word)); len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m}, nil
}

// Screen rejects a nickname containing any censored pattern.
func (m *Moderator) Screen(nickname string) error {
	if m == nil {
		return nil
	}
	normalized := normalizeRunes([]rune(nickname))
	if len(normalized) == 0 {
		return nil
	}
	if hits := m.matcher.MultiPatternSearch(normalized, true); len(hits) > 0 {
		return errors.ErrNicknameCensored
	}
	return nil
}

// normalizeRunes lowercases, folds common leet-speak substitutions, and
// drops punctuation/spacing noise.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
