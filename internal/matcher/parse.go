package matcher

import "strings"

// Attributes are the size and colour recovered from a variant label. Empty means unknown.
type Attributes struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// HasSize reports whether a size was recognised.
func (a Attributes) HasSize() bool { return a.Size != "" }

// HasColor reports whether a colour was recognised.
func (a Attributes) HasColor() bool { return a.Color != "" }

// Parse splits label into tokens, takes the first vocabulary size token as the size and
// joins the remaining tokens into a colour. Tokens that look like supplier codes are dropped.
func Parse(label string) Attributes {
	var attrs Attributes
	var color []string
	for _, tok := range tokenize(Normalize(label)) {
		if size := canonicalSize(tok); size != "" {
			if attrs.Size == "" {
				attrs.Size = size
			}
			continue
		}
		if looksLikeSKU(tok) {
			continue
		}
		color = append(color, tok)
	}
	attrs.Color = strings.Join(color, " ")
	return attrs
}

// normalizeColor brings an explicit supplier colour field into the same shape as Parse output.
func normalizeColor(color string) string {
	return strings.Join(tokenize(Normalize(color)), " ")
}

// normalizeSize canonicalizes an explicit supplier size field.
func normalizeSize(size string) string {
	n := strings.Join(tokenize(Normalize(size)), "")
	if c := canonicalSize(n); c != "" {
		return c
	}
	return n
}

// sameColor compares colours ignoring spacing.
func sameColor(a, b string) bool {
	return a != "" && squash(a) == squash(b)
}

// compatibleColor is a looser check used by partial matching: equal colours, or one colour's
// words appearing as a contiguous run inside the other.
func compatibleColor(a, b string) bool {
	if sameColor(a, b) {
		return true
	}
	at, bt := strings.Fields(a), strings.Fields(b)
	return containsRun(at, bt) || containsRun(bt, at)
}

// containsRun reports whether needle occurs as a contiguous run of tokens in hay.
func containsRun(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
