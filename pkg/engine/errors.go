package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// UnsupportedLanguageError is returned when a language tag has no grammar or
// no rule dialect. It is raised before any parsing happens.
type UnsupportedLanguageError struct {
	Language    string
	Suggestions []string
}

func (e *UnsupportedLanguageError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unsupported language %q", e.Language)
	}
	return fmt.Sprintf("unsupported language %q (did you mean %s?)", e.Language, strings.Join(e.Suggestions, ", "))
}

const (
	minSuggestSimilarity = 0.8
	maxSuggestDistance   = 2
	maxSuggestions       = 3
)

// suggest ranks known names by similarity to input. names maps every
// accepted tag (canonical or alias) to its canonical language.
func suggest(input string, names map[string]string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return nil
	}

	type candidate struct {
		name  string
		score float32
	}
	best := make(map[string]float32)
	for tag, canonical := range names {
		score, err := edlib.StringsSimilarity(input, tag, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score < minSuggestSimilarity && edlib.LevenshteinDistance(input, tag) > maxSuggestDistance {
			continue
		}
		if prev, ok := best[canonical]; !ok || score > prev {
			best[canonical] = score
		}
	}

	cands := make([]candidate, 0, len(best))
	for name, score := range best {
		cands = append(cands, candidate{name, score})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].name < cands[j].name
	})

	out := make([]string, 0, maxSuggestions)
	for _, c := range cands {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}
