package moderation

import (
	"bufio"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// Censor rewrites message content before it is stored.
type Censor interface {
	Censor(original string) string
}

// Noop leaves content untouched, used when moderation is disabled.
type Noop struct{}

func (Noop) Censor(original string) string { return original }

// Moderator masks forbidden words with a replacement rune.
// Matching ignores case, punctuation, spacing and common leet substitutions,
// the replacement covers the original characters including the noise in between.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton from the normalized word list.
// Words that normalize to nothing are ignored.
func NewModerator(censoredWords []string, censoredChar rune) (*Moderator, error) {
	normalized := lo.Uniq(lo.FilterMap(censoredWords, func(word string, _ int) (string, bool) {
		n := string(normalizeRunes([]rune(word)))
		return n, n != ""
	}))
	sort.Strings(normalized)

	moderator := &Moderator{censoredChar: censoredChar}
	if len(normalized) == 0 {
		return moderator, nil
	}
	patterns := lo.Map(normalized, func(word string, _ int) []rune { return []rune(word) })

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	moderator.matcher = m
	return moderator, nil
}

// LoadEmbedded returns the censored words shipped with the binary, one per line.
func LoadEmbedded() ([]string, error) {
	return LoadWords(censoredFolder, "censored")
}

func LoadWords(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var words []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file, err := fsys.Open(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if word := strings.TrimSpace(scanner.Text()); word != "" && !strings.HasPrefix(word, "#") {
				words = append(words, word)
			}
		}
		_ = file.Close()
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	return words, nil
}

// Censor replaces every forbidden span, spacing and length are preserved.
func (m *Moderator) Censor(original string) string {
	if m.matcher == nil {
		return original
	}
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original
	}
	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) || end <= start {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
	}
	return string(origRunes)
}

func normalize(input string) textMapping {
	origRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if clean := simplifyRune(r); !isNoise(clean) {
			out = append(out, unicode.ToLower(clean))
		}
	}
	return out
}

// simplifyRune maps leet speak characters back to letters.
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
