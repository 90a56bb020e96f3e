package store

import (
	"strings"
)

// Slug derives the filesystem key for a category label. The transliteration
// covers only í and ó, not a general Unicode fold: category labels in the
// trained corpus contain no other accented characters, and the key scheme
// must keep matching the directories the trainer wrote.
// Order matters: spaces become hyphens before commas are stripped.
func Slug(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "í", "i")
	s = strings.ReplaceAll(s, "ó", "o")
	return s
}
