package panel

import "strings"

var conditionMarkers = []string{
	"condition",
	"contingent",
	"subject to",
	"provided that",
	"dependent on",
	"requirement",
}

// ExtractConditions pulls the first condition-bearing sentence out of each
// turn that mentions one.
func ExtractConditions(turns []Turn) []string {
	var out []string
	for _, turn := range turns {
		if sentence := conditionSentence(turn.Content); sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}

func conditionSentence(content string) string {
	for _, sentence := range strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '\n' || r == ';'
	}) {
		lower := strings.ToLower(sentence)
		for _, marker := range conditionMarkers {
			if strings.Contains(lower, marker) {
				return strings.TrimSpace(sentence)
			}
		}
	}
	return ""
}
