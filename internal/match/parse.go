package match

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParsedName holds the fields recovered from a peer-reported filename.
// Unmatched fields stay empty.
type ParsedName struct {
	Artist string
	Album  string
	Title  string
	Track  int

	// Remix attribution, filled when a version marker is detected:
	// the credited remixer becomes the primary lookup artist and the
	// original performer demotes to a contributing credit.
	IsRemix         bool
	OriginalTitle   string
	CreditedRemixer string
}

// LookupArtist returns the artist to query the catalog with
func (p *ParsedName) LookupArtist() string {
	if p.IsRemix && p.CreditedRemixer != "" {
		return p.CreditedRemixer
	}
	return p.Artist
}

// LookupTitle returns the title to query the catalog with
func (p *ParsedName) LookupTitle() string {
	if p.IsRemix && p.OriginalTitle != "" {
		return p.OriginalTitle
	}
	return p.Title
}

// Filename separators peers actually use: hyphen, en dash, em dash
const seps = `[-\x{2013}\x{2014}]`

var filenamePatterns = []struct {
	re    *regexp.Regexp
	parse func(*ParsedName, []string)
}{
	{
		// "02 - Artist - Title"
		re: regexp.MustCompile(`^(\d{1,3})\s*` + seps + `\s*(.+?)\s+` + seps + `\s+(.+)$`),
		parse: func(p *ParsedName, m []string) {
			p.Track, _ = strconv.Atoi(m[1])
			p.Artist = strings.TrimSpace(m[2])
			p.Title = strings.TrimSpace(m[3])
		},
	},
	{
		// "Artist - Album - Title"
		re: regexp.MustCompile(`^(.+?)\s+` + seps + `\s+(.+?)\s+` + seps + `\s+(.+)$`),
		parse: func(p *ParsedName, m []string) {
			p.Artist = strings.TrimSpace(m[1])
			p.Album = strings.TrimSpace(m[2])
			p.Title = strings.TrimSpace(m[3])
		},
	},
	{
		// "02 - Title"; must outrank the artist/title split or the
		// track number reads as an artist
		re: regexp.MustCompile(`^(\d{1,3})\s*` + seps + `\s*(.+)$`),
		parse: func(p *ParsedName, m []string) {
			p.Track, _ = strconv.Atoi(m[1])
			p.Title = strings.TrimSpace(m[2])
		},
	},
	{
		// "Artist - Title"
		re: regexp.MustCompile(`^(.+?)\s+` + seps + `\s+(.+)$`),
		parse: func(p *ParsedName, m []string) {
			p.Artist = strings.TrimSpace(m[1])
			p.Title = strings.TrimSpace(m[2])
		},
	},
}

// remix version markers: "Title (X Remix)", "Title [X Remix]", "Title - X Remix"
var remixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+?)\s*\(([^()]+?)\s+remix\)\s*$`),
	regexp.MustCompile(`(?i)^(.+?)\s*\[([^\[\]]+?)\s+remix\]\s*$`),
	regexp.MustCompile(`(?i)^(.+?)\s+` + seps + `\s+(.+?)\s+remix\s*$`),
}

// dashRemixRe matches the trailing dash-form marker on the whole name,
// whose separator the artist/title split would otherwise consume. The
// remixer segment must not contain a separator itself so multi-field
// names keep their leading fields.
var dashRemixRe = regexp.MustCompile(`(?i)^(.+?)\s+` + seps + `\s+([^-\x{2013}\x{2014}]+?)\s+remix\s*$`)

// ParseFilename recovers artist/album/title fields from a remote filename.
// Patterns are ordered most specific first; the first match wins.
func ParseFilename(remotePath string) *ParsedName {
	base := baseName(remotePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = preClean(name)

	name, dashRemixer := splitDashRemix(name)

	parsed := &ParsedName{}
	for _, p := range filenamePatterns {
		if m := p.re.FindStringSubmatch(name); m != nil {
			p.parse(parsed, m)
			break
		}
	}

	// No pattern matched: the whole name is the title
	if parsed.Title == "" {
		parsed.Title = name
	}

	if dashRemixer != "" {
		parsed.IsRemix = true
		parsed.OriginalTitle = parsed.Title
		parsed.CreditedRemixer = dashRemixer
	} else {
		detectRemix(parsed)
	}
	return parsed
}

// splitDashRemix strips a trailing "- X Remix" marker before the field
// patterns run; the remainder parses normally and its title is the
// remixed original
func splitDashRemix(name string) (string, string) {
	if m := dashRemixRe.FindStringSubmatch(name); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return name, ""
}

// detectRemix splits a version marker out of the parsed title
func detectRemix(p *ParsedName) {
	for _, re := range remixPatterns {
		if m := re.FindStringSubmatch(p.Title); m != nil {
			p.IsRemix = true
			p.OriginalTitle = strings.TrimSpace(m[1])
			p.CreditedRemixer = strings.TrimSpace(m[2])
			return
		}
	}
}

// preClean normalizes separators before pattern matching: underscores
// become spaces and runs of whitespace collapse
func preClean(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	name = whitespaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// baseName handles both path separator conventions peers report
func baseName(remotePath string) string {
	normalized := strings.ReplaceAll(remotePath, "\\", "/")
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		return normalized[idx+1:]
	}
	return normalized
}
