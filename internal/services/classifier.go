package services

import (
	"strings"
	"unicode"
)

// Intent is the classified meaning of a free-text check-in reply
type Intent int

const (
	IntentUnknown Intent = iota
	IntentAffirmative
	IntentNegative
)

// Classification is the result of parsing one reply
type Classification struct {
	Intent    Intent
	Reason    string // only set for IntentNegative
	HasReason bool
}

// The grammar is a fixed ordered rule table, not NLU. Each rule is a
// set of markers matched against the normalized input; the first rule
// that matches wins. Exact markers must equal the whole input, prefix
// markers must be followed by a word boundary.
type intentRule struct {
	intent   Intent
	exact    []string
	prefixes []string
}

var intentRules = []intentRule{
	{
		intent: IntentAffirmative,
		exact:  []string{"y", "yep", "yeah", "done", "did it", "completed", "all done"},
		prefixes: []string{
			"yes",
		},
	},
	{
		intent: IntentNegative,
		exact:  []string{"nope", "nah", "not today", "missed it"},
		prefixes: []string{
			"no",
			"didn't",
			"did not",
			"skipped",
			"missed",
		},
	},
}

// ClassifyReply parses a free-text reply into an intent. Case and
// surrounding whitespace are the only normalization applied.
func ClassifyReply(text string) Classification {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Classification{Intent: IntentUnknown}
	}

	for _, rule := range intentRules {
		if !rule.matches(normalized) {
			continue
		}
		c := Classification{Intent: rule.intent}
		if rule.intent == IntentNegative {
			c.Reason, c.HasReason = extractReason(normalized)
		}
		return c
	}

	return Classification{Intent: IntentUnknown}
}

func (r intentRule) matches(s string) bool {
	for _, e := range r.exact {
		if s == e {
			return true
		}
	}
	for _, p := range r.prefixes {
		if hasWordPrefix(s, p) {
			return true
		}
	}
	return false
}

// hasWordPrefix reports whether s starts with prefix followed by a word
// boundary, so "no thanks" matches "no" but "notebook" does not.
func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	rest := s[len(prefix):]
	if rest == "" {
		return true
	}
	return !unicode.IsLetter(rune(rest[0])) && !unicode.IsDigit(rune(rest[0]))
}

// extractReason pulls an inline reason out of a negative reply.
// "no because I was tired" -> "i was tired"; the connective's "of"
// filler is stripped ("because of rain" -> "rain"). Without a causal
// connective, anything after the first comma counts:
// "didn't do it, too busy" -> "too busy".
func extractReason(s string) (string, bool) {
	if idx := strings.Index(s, "because"); idx >= 0 {
		after := s[idx+len("because"):]
		after = strings.TrimSpace(after)
		if strings.HasPrefix(after, "of ") {
			after = after[len("of "):]
		}
		after = strings.Trim(after, " :,-")
		if after != "" {
			return after, true
		}
		return "", false
	}

	if idx := strings.Index(s, ","); idx >= 0 {
		after := strings.TrimSpace(s[idx+1:])
		if after != "" {
			return after, true
		}
	}

	return "", false
}
