package security

import (
	"regexp"
	"strings"
)

// Verdict is the outcome of screening one piece of text.
type Verdict struct {
	Suspicious bool
	Reasons    []string
}

// Pattern is a named injection pattern.
type Pattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// Patterns aimed at the model rather than the reader. Programming pages
// mention eval(), curl and "override" legitimately, so only phrasing that
// addresses an assistant is listed.
var injectionPatterns = []Pattern{
	{Name: "ignore_previous", Pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|directives?|rules?)`)},
	{Name: "disregard_previous", Pattern: regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+(instructions?|directives?)`)},
	{Name: "forget_previous", Pattern: regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous|your\s+instructions)`)},
	{Name: "new_instructions", Pattern: regexp.MustCompile(`(?i)(your\s+)?new\s+instructions\s+(are|follow)`)},
	{Name: "role_override", Pattern: regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\s+`)},
	{Name: "reveal_prompt", Pattern: regexp.MustCompile(`(?i)(reveal|show|print|repeat)\s+(your\s+)?system\s+prompt`)},
	{Name: "score_override", Pattern: regexp.MustCompile(`(?i)(give|assign|rate)\s+(this|the)\s+(answer|response|page)\s+(a\s+)?(score|rating)\s+of\s+10`)},
	{Name: "curl_pipe_shell", Pattern: regexp.MustCompile(`(?i)curl\s+\S+.*\|\s*(ba)?sh`)},
}

var (
	base64Pattern      = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	urlEncodingPattern = regexp.MustCompile(`(%[0-9A-Fa-f]{2}){8,}`)
)

// minEncodedLen is the shortest run of base64 characters treated as a
// possible payload.
const minEncodedLen = 64

// Screen checks text for injection phrasing and encoded payloads.
func Screen(text string) Verdict {
	var v Verdict
	for _, p := range injectionPatterns {
		if p.Pattern.MatchString(text) {
			v.Reasons = append(v.Reasons, "pattern:"+p.Name)
		}
	}
	if enc := DetectEncoding(text); enc != "" {
		v.Reasons = append(v.Reasons, "encoding:"+enc)
	}
	v.Suspicious = len(v.Reasons) > 0
	return v
}

// DetectEncoding returns "url" or "base64" when text carries a long encoded
// run, "" otherwise.
func DetectEncoding(text string) string {
	if urlEncodingPattern.MatchString(text) {
		return "url"
	}
	for _, seg := range segments(text, minEncodedLen) {
		if ShannonEntropy([]byte(seg)) < EntropyThreshold {
			continue
		}
		if len(seg)%4 == 0 && base64Pattern.MatchString(seg) {
			return "base64"
		}
	}
	return ""
}

// segments returns runs of base64 alphabet characters at least minLen long.
func segments(text string, minLen int) []string {
	var out []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minLen {
			out = append(out, text[start:end])
		}
		start = -1
	}
	for i := 0; i < len(text); i++ {
		if strings.IndexByte(base64Alphabet, text[i]) >= 0 {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return out
}

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="
