// Package corpus models the canonical verse corpus the consultation engine
// cites from: passages addressed by chapter/verse canonical IDs.
package corpus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPrefix is the canonical ID prefix for the bundled verse corpus.
const DefaultPrefix = "BG"

var canonicalPattern = regexp.MustCompile(`^([A-Z]+)_(\d{1,2})_(\d{1,3})$`)

// CanonicalID addresses one verse as PREFIX_<chapter>_<verse>.
type CanonicalID struct {
	Prefix  string
	Chapter int
	Verse   int
}

// ParseCanonicalID parses and validates a canonical ID string.
func ParseCanonicalID(s string) (CanonicalID, error) {
	m := canonicalPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return CanonicalID{}, fmt.Errorf("invalid canonical ID %q", s)
	}
	chapter, err := strconv.Atoi(m[2])
	if err != nil || chapter < 1 {
		return CanonicalID{}, fmt.Errorf("invalid chapter in canonical ID %q", s)
	}
	verse, err := strconv.Atoi(m[3])
	if err != nil || verse < 1 {
		return CanonicalID{}, fmt.Errorf("invalid verse in canonical ID %q", s)
	}
	return CanonicalID{Prefix: m[1], Chapter: chapter, Verse: verse}, nil
}

// IsCanonicalID reports whether s is a well-formed canonical ID.
func IsCanonicalID(s string) bool {
	_, err := ParseCanonicalID(s)
	return err == nil
}

// String renders the ID in canonical form.
func (id CanonicalID) String() string {
	return fmt.Sprintf("%s_%d_%d", id.Prefix, id.Chapter, id.Verse)
}

// FindCanonicalIDs extracts all well-formed canonical IDs from free text,
// preserving first-occurrence order without duplicates.
func FindCanonicalIDs(text string) []string {
	raw := regexp.MustCompile(`[A-Z]+_\d{1,2}_\d{1,3}`).FindAllString(text, -1)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if _, ok := seen[id]; ok {
			continue
		}
		if !IsCanonicalID(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
