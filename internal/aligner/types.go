package aligner

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Phrase is one authored source-language phrase. Translation may already be
// supplied by the author; empty means the translation capability fills it in.
type Phrase struct {
	Text        string
	Translation string
	Language    language.Tag // language.Und lets the pipeline detect it
}

// BilingualUnit pairs one source phrase with its translation. Audio-sourced
// units carry the sentence timing as a reference duration only; repeated
// playback changes the real elapsed time.
type BilingualUnit struct {
	ID              string
	SourceText      string
	SourceLanguage  language.Tag
	TranslationText string
	TargetLanguage  language.Tag
	RefStart        time.Duration
	RefEnd          time.Duration
	Timed           bool
}

// Failure records a unit excluded from the run after retries exhausted.
type Failure struct {
	UnitID     string
	SourceText string
	Err        error
}

// UnitID derives a deterministic identifier from the translation request so
// identical source text and languages always map to the same unit.
func UnitID(text string, source, target language.Tag) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(text)))
	h.Write([]byte{0})
	h.Write([]byte(source.String()))
	h.Write([]byte{0})
	h.Write([]byte(target.String()))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
