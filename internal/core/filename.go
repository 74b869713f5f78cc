package core

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s, folds accents and joins the alphanumeric runs with "-".
func Slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Trim(nonSlug.ReplaceAllString(folded, "-"), "-")
}

// Filename returns "{slug(entity)}_{YYYY-MM-DD}.{ext}".
func Filename(entity string, format ExportFormat, now time.Time) string {
	slug := Slug(entity)
	if slug == "" {
		slug = "export"
	}
	return slug + "_" + now.Format("2006-01-02") + "." + format.Extension()
}
