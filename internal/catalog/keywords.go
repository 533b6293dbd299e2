package catalog

import (
	"strings"
	"unicode"
)

// Query is the free-text side of a caption match.
type Query struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Keywords returns the lowercase keyword tokens of q in order: title tokens,
// description tokens, then each tag as a single token. Repeated words are
// kept so that term frequency weighs on the score.
func Keywords(q Query) []string {
	keywords := make([]string, 0, len(q.Tags)+8)
	keywords = append(keywords, tokenize(q.Title)...)
	keywords = append(keywords, tokenize(q.Description)...)
	for _, tag := range q.Tags {
		if tag == "" {
			continue
		}
		keywords = append(keywords, strings.ToLower(tag))
	}
	return keywords
}

// tokenize splits text on runs of anything that is not a letter (any script)
// or an ASCII digit.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && (r < '0' || r > '9')
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}
