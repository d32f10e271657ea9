package lib

import (
	"strings"

	"github.com/gosimple/slug"
)

func Slugify(text string) string {
	return slug.Make(text)
}

// SlugifyFilename builds a filesystem safe name from text, capped to maxLen
// so long URLs do not overflow path limits.
func SlugifyFilename(text string, maxLen int) string {
	s := slug.Make(text)
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
		s = strings.TrimRight(s, "-")
	}
	return s
}
