// Package text provides the content filter and the text normalization applied
// to chat requests before they are hashed and synthesized.
//
// Sanitize and Normalize are deterministic and idempotent: applying either one
// to its own output returns the same string.
package text

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	linkRegexPattern = `(?i)https?://\S+`
	linkReplacement  = " [link removed] "
	allowedPunct     = `.,!?;:-'"()`
	sentenceEndings  = ".!?"
	defaultCapsRatio = 0.7
)

// Options configures a Sanitizer.
type Options struct {
	BlockedWords     []string
	AllowedLinkHosts []string
	MaxCapsRatio     float64
}

// Sanitizer implements the content predicate and the text transforms.
type Sanitizer struct {
	blockedWords []string
	allowedHosts []string
	maxCapsRatio float64

	// Precompiled patterns.
	linkPattern         *regexp.Regexp
	obfuscationPatterns []*regexp.Regexp

	// Folds typographic punctuation into the ASCII forms the whitelist keeps.
	punctuationReplacer *strings.Replacer
}

// NewSanitizer creates a Sanitizer. Empty options fall back to the defaults.
func NewSanitizer(opts Options) *Sanitizer {
	blocked := opts.BlockedWords
	if len(blocked) == 0 {
		blocked = DefaultBlockedWords
	}

	lowered := make([]string, 0, len(blocked))
	for _, word := range blocked {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			lowered = append(lowered, word)
		}
	}

	hosts := make([]string, 0, len(opts.AllowedLinkHosts))
	for _, host := range opts.AllowedLinkHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			hosts = append(hosts, host)
		}
	}

	ratio := opts.MaxCapsRatio
	if ratio <= 0 {
		ratio = defaultCapsRatio
	}

	compiled := make([]*regexp.Regexp, 0, len(obfuscationPatterns))
	for _, pattern := range obfuscationPatterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}

	return &Sanitizer{
		blockedWords:        lowered,
		allowedHosts:        hosts,
		maxCapsRatio:        ratio,
		linkPattern:         regexp.MustCompile(linkRegexPattern),
		obfuscationPatterns: compiled,
		punctuationReplacer: strings.NewReplacer(
			"—", "-", "–", "-", "‒", "-",
			"…", "...",
			"«", `"`, "»", `"`, "“", `"`, "”", `"`, "„", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Sanitize strips disallowed links and characters, collapses whitespace,
// truncates to maxLength runes and ensures trailing sentence punctuation.
func (s *Sanitizer) Sanitize(input string, maxLength int) string {
	cleaned := norm.NFKC.String(input)
	cleaned = s.replaceLinks(cleaned)
	cleaned = strings.Map(whitelistRune, cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = truncateRunes(cleaned, maxLength)

	return ensureSentenceEnding(cleaned)
}

// Normalize produces the exact text sent to the synthesizer and hashed into
// the cache key: typographic punctuation folded, lowercased, then sanitized.
func (s *Sanitizer) Normalize(input string, maxLength int) string {
	normalized := norm.NFKC.String(input)
	normalized = s.punctuationReplacer.Replace(normalized)
	normalized = strings.ToLower(normalized)

	return s.Sanitize(normalized, maxLength)
}

// IsAllowed reports whether text passes the content filter: no blocked words
// or obfuscated spellings, no links outside the allowed hosts and not shouting.
func (s *Sanitizer) IsAllowed(input string) bool {
	lowered := strings.ToLower(input)

	for _, word := range s.blockedWords {
		if strings.Contains(lowered, word) {
			return false
		}
	}

	for _, pattern := range s.obfuscationPatterns {
		if pattern.MatchString(lowered) {
			return false
		}
	}

	for _, link := range s.linkPattern.FindAllString(input, -1) {
		if !s.isAllowedLink(link) {
			return false
		}
	}

	return !s.isShouting(input)
}

func (s *Sanitizer) replaceLinks(input string) string {
	return s.linkPattern.ReplaceAllStringFunc(input, func(link string) string {
		if s.isAllowedLink(link) {
			return link
		}

		return linkReplacement
	})
}

func (s *Sanitizer) isAllowedLink(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	for _, allowed := range s.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}

	return false
}

func (s *Sanitizer) isShouting(input string) bool {
	var letters, upper int

	for _, r := range input {
		if !unicode.IsLetter(r) {
			continue
		}

		letters++

		if unicode.IsUpper(r) {
			upper++
		}
	}

	if letters == 0 {
		return false
	}

	return float64(upper)/float64(letters) > s.maxCapsRatio
}

// whitelistRune keeps letters, numbers, underscore, whitespace and basic
// punctuation. Everything else becomes a space.
func whitelistRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsNumber(r), r == '_':
		return r
	case unicode.IsSpace(r):
		return ' '
	case strings.ContainsRune(allowedPunct, r):
		return r
	default:
		return ' '
	}
}

func truncateRunes(input string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	if utf8.RuneCountInString(input) > maxLength {
		input = string([]rune(input)[:maxLength])
	}

	return strings.TrimSpace(input)
}

func ensureSentenceEnding(input string) string {
	if input == "" {
		return ""
	}

	last, _ := utf8.DecodeLastRuneInString(input)
	if strings.ContainsRune(sentenceEndings, last) {
		return input
	}

	return input + "."
}
