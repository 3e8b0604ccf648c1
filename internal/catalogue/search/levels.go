package search

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

type levelRule struct {
	label string
	keys  []string
	// words must match a whole token, not a substring.
	words []string
}

// Order matters: "undergrad" must win over the "gradua" master key.
var levelRules = []levelRule{
	{"PhD", []string{"phd", "doctoral", "doctorate", "dphil"}, nil},
	{"Bachelor", []string{"undergrad"}, nil},
	{"Master", []string{"master", "msc", "m.sc", "gradua"}, nil},
	{"Bachelor", []string{"bachelor", "bsc", "b.sc"}, []string{"ba"}},
	{"HS", []string{"high", "secondary"}, nil},
	{"Cert", []string{"diploma", "certificate", "cert"}, nil},
	{"Associate", []string{"associate"}, nil},
}

const levelLabelMax = 12

// ShortLevelLabel normalises an educational level value to a compact label.
// Unrecognised values are split on camel case and truncated.
func ShortLevelLabel(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "/#") {
		if i := strings.LastIndex(s, "#"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "/"); i >= 0 {
			s = s[i+1:]
		}
	}
	low := strings.ToLower(s)
	tokens := strings.FieldsFunc(strings.ToLower(camelBoundary.ReplaceAllString(s, "$1 $2")), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range levelRules {
		for _, k := range rule.keys {
			if strings.Contains(low, k) {
				return rule.label
			}
		}
		for _, w := range rule.words {
			if slices.Contains(tokens, w) {
				return rule.label
			}
		}
	}
	s = camelBoundary.ReplaceAllString(s, "$1 $2")
	if utf8.RuneCountInString(s) > levelLabelMax+1 {
		return string([]rune(s)[:levelLabelMax]) + "…"
	}
	return s
}
