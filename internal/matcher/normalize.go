package matcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	oneSizePattern = regexp.MustCompile(`\b(one|free)[\s\-_]?size\b`)
	numericSize    = regexp.MustCompile(`^\d{1,3}(\.5)?$`)
	skuLike        = regexp.MustCompile(`^[a-z]*\d[a-z0-9]*$`)
)

// sizeVocabulary maps recognised size tokens to their canonical spelling.
var sizeVocabulary = map[string]string{
	"xxs":     "2xs",
	"2xs":     "2xs",
	"xs":      "xs",
	"s":       "s",
	"small":   "s",
	"m":       "m",
	"medium":  "m",
	"l":       "l",
	"large":   "l",
	"xl":      "xl",
	"xxl":     "2xl",
	"2xl":     "2xl",
	"xxxl":    "3xl",
	"3xl":     "3xl",
	"xxxxl":   "4xl",
	"4xl":     "4xl",
	"xxxxxl":  "5xl",
	"5xl":     "5xl",
	"6xl":     "6xl",
	"onesize": "onesize",
}

// Normalize folds width and case, trims and collapses internal whitespace.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(s), " ")
}

// tokenize splits a normalized label on the delimiters suppliers use between attributes.
func tokenize(normalized string) []string {
	normalized = oneSizePattern.ReplaceAllString(normalized, "onesize")
	normalized = strings.ReplaceAll(normalized, "&", " and ")
	return strings.FieldsFunc(normalized, func(r rune) bool {
		switch r {
		case '-', '/', ',', '|', ';', '_', '(', ')', '+', ' ', '\t':
			return true
		}
		return false
	})
}

// canonicalSize returns the canonical size for token, or "" when it is not a size.
func canonicalSize(token string) string {
	if s, ok := sizeVocabulary[token]; ok {
		return s
	}
	if numericSize.MatchString(token) {
		return token
	}
	return ""
}

// looksLikeSKU reports whether a token is a supplier code rather than a colour word.
func looksLikeSKU(token string) bool {
	return len(token) >= 4 && skuLike.MatchString(token)
}

// squash drops spaces so "black and silver" and "blackandsilver" compare equal.
func squash(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
