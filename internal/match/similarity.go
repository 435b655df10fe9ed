package match

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritic marks after NFD decomposition so that
// "Beyoncé" and "Beyonce" compare equal
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

var whitespaceRe = regexp.MustCompile(`\s+`)

var punctReplacer = strings.NewReplacer(
	".", "",
	",", "",
	"!", "",
	"?", "",
	"'", "",
	"’", "",
	"\"", "",
	":", "",
	";", "",
	"(", " ",
	")", " ",
	"[", " ",
	"]", " ",
	"-", " ",
	"_", " ",
	"&", "and",
	"/", " ",
)

// Normalize prepares a string for similarity comparison: diacritics
// stripped, lowercased, punctuation removed, whitespace collapsed
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}
	s = strings.ToLower(s)
	s = punctReplacer.Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Similarity returns an edit-distance similarity in [0,1] between the
// normalized forms of a and b. 1 means equal after normalization.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	distance := fuzzy.LevenshteinDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}

	sim := 1.0 - float64(distance)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// multiCreditSplitRe separates the first-named artist from a multi-credit
// string like "A & B", "A, B", "A feat. B", "A x B"
var multiCreditSplitRe = regexp.MustCompile(`(?i)\s*(?:,|&|\bfeat\.?\b|\bft\.?\b|\bfeaturing\b|\bvs\.?\b|\bx\b|\bwith\b)\s+`)

// FirstNamedArtist returns the first credit of a possibly multi-credit
// artist string, or the input unchanged when it carries a single credit
func FirstNamedArtist(artist string) string {
	parts := multiCreditSplitRe.Split(artist, 2)
	if len(parts) > 0 {
		return strings.TrimSpace(parts[0])
	}
	return artist
}

// ArtistSimilarity compares a candidate artist string against an
// identity's credited artists. The full candidate string is tried first
// against both the joined credit list and the primary artist; only then
// does the first-named artist fall back in, so a multi-credit string is
// never split into spurious matches.
func ArtistSimilarity(candidateArtist string, identityArtists []string) float64 {
	if candidateArtist == "" || len(identityArtists) == 0 {
		return 0
	}

	best := Similarity(candidateArtist, strings.Join(identityArtists, " "))
	if sim := Similarity(candidateArtist, identityArtists[0]); sim > best {
		best = sim
	}

	if first := FirstNamedArtist(candidateArtist); first != candidateArtist {
		if sim := Similarity(first, identityArtists[0]); sim > best {
			best = sim
		}
	}

	return best
}
