package services

import (
	"regexp"

	"github.com/xrash/smetrics"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

var (
	editionParens = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*\b(remaster(ed)?|live|deluxe|edition|version|mono|stereo|mix|anniversary|bonus|edit)\b[^\)\]]*[\)\]]`)
	editionDash   = regexp.MustCompile(`(?i)\s+-\s+[^-]*\b(remaster(ed)?|live|deluxe|edition|version|mono|stereo|mix|anniversary|bonus|edit)\b.*$`)
	featuring     = regexp.MustCompile(`(?i)\s*(\(|\[)?\s*\b(feat\.?|ft\.?|featuring)\s.*$`)
)

// Matcher decides whether a catalog candidate is the same song as a query.
//
// Artists must be equal after normalization. An exact title is preferred; with Fuzzy
// enabled the first candidate whose Jaro-Winkler title similarity reaches MinSimilarity wins.
type Matcher struct {
	Fuzzy         bool
	MinSimilarity float64
	StripEditions bool
}

// NewMatcher builds a [Matcher] from config.
func NewMatcher(cfg shared.MatchingConfig) *Matcher {
	return &Matcher{Fuzzy: cfg.Fuzzy, MinSimilarity: cfg.MinSimilarity, StripEditions: cfg.StripEditions}
}

// DefaultMatcher matches exact titles and strips edition suffixes.
func DefaultMatcher() *Matcher {
	return &Matcher{StripEditions: true, MinSimilarity: 1}
}

// Title normalizes a song title for comparison.
func (m *Matcher) Title(title string) string {
	title = featuring.ReplaceAllString(title, "")
	if m.StripEditions {
		title = editionParens.ReplaceAllString(title, "")
		title = editionDash.ReplaceAllString(title, "")
	}
	return shared.NormalizeText(title)
}

// SameArtist compares artists after normalization, ignoring a trailing featuring credit
// ("A feat. B" is A). Ensemble names are never split, so "Simon" is not "Simon & Garfunkel".
func (m *Matcher) SameArtist(a, b string) bool {
	na, nb := leadArtist(a), leadArtist(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

func leadArtist(artist string) string {
	return shared.NormalizeText(featuring.ReplaceAllString(artist, ""))
}

// Same reports whether candidate matches query exactly (after normalization).
func (m *Matcher) Same(query, candidate models.Song) bool {
	return m.SameArtist(query.Artist, candidate.Artist) && m.Title(query.Title) == m.Title(candidate.Title)
}

// Pick returns the best candidate for query, keeping the provider's ranking as tie-breaker,
// or nil if none is acceptable.
func (m *Matcher) Pick(query models.Song, candidates []models.Song) *models.Song {
	want := m.Title(query.Title)
	if want == "" {
		return nil
	}

	var fuzzy *models.Song
	for i := range candidates {
		c := candidates[i]
		if !m.SameArtist(query.Artist, c.Artist) {
			continue
		}

		got := m.Title(c.Title)
		if got == want {
			return &c
		}
		if fuzzy == nil && m.Fuzzy && smetrics.JaroWinkler(want, got, 0.7, 4) >= m.MinSimilarity {
			fuzzy = &c
		}
	}
	return fuzzy
}
