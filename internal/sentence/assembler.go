package sentence

import (
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
)

// Unit is a complete sentence assembled from the transcript word stream.
type Unit struct {
	Words    []capability.TranscribedWord
	Start    time.Duration
	End      time.Duration
	Language language.Tag
}

// Text joins the unit's words with single spaces.
func (u Unit) Text() string {
	parts := make([]string, 0, len(u.Words))
	for _, w := range u.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// terminalRunes close a sentence when a word ends with one of them,
// optionally followed by closing quotes or brackets.
var terminalRunes = map[rune]bool{
	'.': true,
	'!': true,
	'?': true,
	'…': true,
}

var closingRunes = map[rune]bool{
	'"':  true,
	'\'': true,
	'”':  true,
	'»':  true,
	')':  true,
	']':  true,
}

// endsSentence reports whether a word carries sentence-terminal punctuation.
func endsSentence(text string) bool {
	runes := []rune(strings.TrimSpace(text))
	for i := len(runes) - 1; i >= 0; i-- {
		if closingRunes[runes[i]] {
			continue
		}
		return terminalRunes[runes[i]]
	}
	return false
}

// assembler is the boundary state machine. Decisions are greedy
// left-to-right; once a sentence is closed it is never reopened.
type assembler struct {
	cfg     config.SentenceConfig
	lang    language.Tag
	current []capability.TranscribedWord
	units   []Unit
}

// Assemble groups the global word stream into sentence units. A boundary is
// placed at sentence-terminal punctuation, or forced once the accumulated
// words exceed MaxWords or span more than MaxSpan of audio. Transcription
// errors that drop punctuation would otherwise accumulate without bound.
// The returned units partition the word stream exactly.
func Assemble(words []capability.TranscribedWord, lang language.Tag, cfg config.SentenceConfig) []Unit {
	a := &assembler{cfg: cfg, lang: lang}
	for _, w := range words {
		a.push(w)
	}
	a.close()
	return a.units
}

func (a *assembler) push(w capability.TranscribedWord) {
	a.current = append(a.current, w)

	if endsSentence(w.Text) || a.forcedBoundary() {
		a.close()
	}
}

// forcedBoundary reports whether the accumulated words hit a configured cap.
func (a *assembler) forcedBoundary() bool {
	if a.cfg.MaxWords > 0 && len(a.current) >= a.cfg.MaxWords {
		return true
	}
	if a.cfg.MaxSpan > 0 && len(a.current) > 0 {
		span := a.current[len(a.current)-1].End - a.current[0].Start
		if span >= a.cfg.MaxSpan {
			return true
		}
	}
	return false
}

func (a *assembler) close() {
	if len(a.current) == 0 {
		return
	}
	a.units = append(a.units, Unit{
		Words:    a.current,
		Start:    a.current[0].Start,
		End:      a.current[len(a.current)-1].End,
		Language: a.lang,
	})
	a.current = nil
}
