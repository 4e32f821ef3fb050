package transcribe

import (
	"strings"
	"unicode"
)

// Phrases whisper is known to hallucinate on silence or music, per language.
// Matching is exact against a whole trimmed line.
var hallucinations = map[string][]string{
	"ja": {
		"ご視聴ありがとうございました",
		"ご視聴ありがとうございました。",
		"チャンネル登録をお願いします",
		"チャンネル登録をお願いします。",
		"最後までご視聴いただきありがとうございました",
		"最後までご視聴いただきありがとうございました。",
		"おやすみなさい",
		"字幕視聴ありがとうございました",
	},
	"en": {
		"Thanks for watching!",
		"Thanks for watching.",
		"Thank you for watching.",
		"Thank you for watching!",
		"Please subscribe to my channel.",
		"Subtitles by the Amara.org community",
	},
}

// Normalize cleans raw recognizer output: trims whitespace, drops known
// hallucinated lines, collapses runs of blank lines and spaces out script
// boundaries so mixed Japanese and Latin text stays readable.
func Normalize(text, language string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	phrases := hallucinations[language]

	var lines []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = true
			continue
		}
		if isHallucination(line, phrases) {
			continue
		}
		if blank && len(lines) > 0 {
			lines = append(lines, "")
		}
		blank = false
		lines = append(lines, spaceScriptBoundaries(line))
	}
	return strings.Join(lines, "\n")
}

func isHallucination(line string, phrases []string) bool {
	for _, p := range phrases {
		if line == p {
			return true
		}
	}
	return false
}

// spaceScriptBoundaries inserts a space where CJK text runs directly into
// Latin letters or digits, and vice versa.
func spaceScriptBoundaries(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for i, r := range runes {
		if i > 0 && boundary(runes[i-1], r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func boundary(prev, cur rune) bool {
	return (isCJK(prev) && isLatinWord(cur)) || (isLatinWord(prev) && isCJK(cur))
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

func isLatinWord(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
