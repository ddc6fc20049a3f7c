package catalog

import (
	"strings"
	"unicode"

	"github.com/glizzus/clipster/internal/util"
)

// MinFindScore is the lowest similarity Find accepts for a fuzzy match.
const MinFindScore = 0.5

// Find returns the clip that best matches query. Names are tried first by
// exact match, then prefix, then substring. Failing that, each clip is
// scored on how many query words appear in its name and description.
func (c *Catalog) Find(query string) (Clip, bool) {
	q := normalize(query)
	if q == "" {
		return Clip{}, false
	}
	if clip, ok := c.Lookup(q); ok {
		return clip, true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matchers := []func(name string) bool{
		func(name string) bool { return strings.HasPrefix(strings.ToLower(name), q) },
		func(name string) bool { return strings.Contains(strings.ToLower(name), q) },
	}
	for _, match := range matchers {
		if name, ok := util.FindFirst(c.names, match); ok {
			return *c.clips[strings.ToLower(name)], true
		}
	}

	var best *Clip
	bestScore := 0.0
	for _, name := range c.names {
		clip := c.clips[strings.ToLower(name)]
		if score := clipScore(q, clip); score > bestScore {
			best, bestScore = clip, score
		}
	}
	if best == nil || bestScore < MinFindScore {
		return Clip{}, false
	}
	return *best, true
}

func clipScore(query string, clip *Clip) float64 {
	scores := []float64{fieldScore(query, normalize(clip.Name))}
	if clip.Description != "" {
		scores = append(scores, fieldScore(query, normalize(clip.Description)))
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	return total / float64(len(scores))
}

// fieldScore adds the share of query words found in field to half of the
// bigram similarity of the two strings.
func fieldScore(query, field string) float64 {
	return wordOverlap(query, field) + dice(query, field)/2
}

func wordOverlap(query, field string) float64 {
	words := strings.Fields(query)
	if len(words) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, w := range strings.Fields(field) {
		present[w] = struct{}{}
	}

	found := 0
	for _, w := range words {
		if _, ok := present[w]; ok {
			found++
		}
	}
	return float64(found) / float64(len(words))
}

// dice is the Sørensen–Dice coefficient over character bigrams.
func dice(a, b string) float64 {
	if a == b {
		return 1
	}
	ab, bb := bigrams(a), bigrams(b)
	if len(ab) == 0 || len(bb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ab))
	for _, g := range ab {
		counts[g]++
	}
	shared := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ab)+len(bb))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}

// normalize lowercases s and drops everything but letters, digits and
// single spaces.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
