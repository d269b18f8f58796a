package text_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/book-expert/chat-tts-service/internal/text"
	"github.com/stretchr/testify/assert"
)

const testMaxLength = 150

// sanitizerTestCase defines a standard test case for the sanitizer.
type sanitizerTestCase struct {
	name     string
	input    string
	expected string
}

func newTestSanitizer() *text.Sanitizer {
	return text.NewSanitizer(text.Options{
		AllowedLinkHosts: []string{"twitch.tv", "youtube.com"},
		MaxCapsRatio:     0.7,
	})
}

// runSanitizerTests is a helper function to run table-driven tests for a given
// transform.
func runSanitizerTests(
	t *testing.T,
	tests []sanitizerTestCase,
	transform func(s *text.Sanitizer, input string) string,
) {
	t.Helper()

	sanitizer := newTestSanitizer()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, transform(sanitizer, testCase.input))
		})
	}
}

func TestSanitizer_Sanitize(t *testing.T) {
	t.Parallel()

	tests := []sanitizerTestCase{
		{"empty", "", ""},
		{"whitespace only", "   \t\n ", ""},
		{"adds period", "hello there", "hello there."},
		{"keeps question mark", "how are you?", "how are you?"},
		{"collapses whitespace", "  hello \n\t  world  ", "hello world."},
		{"strips symbols", "hi <script>alert(1)</script>", "hi script alert(1) script."},
		{"strips emoji", "nice 🎉🎉 stream", "nice stream."},
		{"keeps cyrillic", "Привет, чат!", "Привет, чат!"},
		{"removes foreign link", "see https://evil.example.com/x now", "see link removed now."},
		{"allowed link is defanged", "https://twitch.tv/streamer", "https: twitch.tv streamer."},
		{"folds compatibility forms", "ｆｕｌｌｗｉｄｔｈ", "fullwidth."},
	}

	runSanitizerTests(t, tests, func(s *text.Sanitizer, input string) string {
		return s.Sanitize(input, testMaxLength)
	})
}

func TestSanitizer_SanitizeTruncatesRunes(t *testing.T) {
	t.Parallel()

	sanitizer := newTestSanitizer()
	input := strings.Repeat("я", 200)

	result := sanitizer.Sanitize(input, 10)

	assert.Equal(t, strings.Repeat("я", 10)+".", result)
	assert.True(t, utf8.ValidString(result))
}

func TestSanitizer_Normalize(t *testing.T) {
	t.Parallel()

	tests := []sanitizerTestCase{
		{"lowercases", "Hello There", "hello there."},
		{"folds dashes and quotes", "«Привет» — мир…", `"привет" - мир...`},
		{"same text different case", "HELLO there!", "hello there!"},
	}

	runSanitizerTests(t, tests, func(s *text.Sanitizer, input string) string {
		return s.Normalize(input, testMaxLength)
	})
}

func TestSanitizer_Idempotent(t *testing.T) {
	t.Parallel()

	sanitizer := newTestSanitizer()
	inputs := []string{
		"",
		"a",
		"hello there",
		"Привет, как дела? 🙂",
		"see https://evil.example.com/x and https://youtube.com/watch?v=1",
		"«quoted» — dash… and ellipsis",
		strings.Repeat("word ", 60),
		strings.Repeat("x", 149) + " y",
		strings.Repeat("ab,", 80),
		"ｆｕｌｌｗｉｄｔｈ ㎒ ﬁne",
		"tabs\tand\nnewlines\r\nmixed",
	}

	for _, input := range inputs {
		for _, maxLength := range []int{5, 20, testMaxLength} {
			once := sanitizer.Sanitize(input, maxLength)
			assert.Equal(t, once, sanitizer.Sanitize(once, maxLength), "Sanitize(%q, %d)", input, maxLength)

			normalized := sanitizer.Normalize(input, maxLength)
			assert.Equal(t, normalized, sanitizer.Normalize(normalized, maxLength), "Normalize(%q, %d)", input, maxLength)
		}
	}
}

func TestSanitizer_IsAllowed(t *testing.T) {
	t.Parallel()

	sanitizer := newTestSanitizer()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain text", "hello there.", true},
		{"cyrillic text", "привет чат", true},
		{"blocked word", "ты сука", false},
		{"blocked word mixed case", "СуКа", false},
		{"obfuscated with latin letters", "cyka blyat", false},
		{"foreign link", "go to https://spam.example.org now", false},
		{"allowed link", "watch https://www.youtube.com/watch?v=abc", true},
		{"allowed subdomain", "clip https://clips.twitch.tv/abc", true},
		{"shouting", "STOP SHOUTING AT ME", false},
		{"some capitals", "Hello There Friend", true},
		{"no letters", "12345!", true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, sanitizer.IsAllowed(testCase.input))
		})
	}
}

func TestNewSanitizer_CustomBlockedWords(t *testing.T) {
	t.Parallel()

	sanitizer := text.NewSanitizer(text.Options{BlockedWords: []string{" Spoiler "}})

	assert.False(t, sanitizer.IsAllowed("big spoiler ahead"))
	assert.True(t, sanitizer.IsAllowed("nothing to see"))
}
