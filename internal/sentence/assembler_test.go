package sentence

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
)

func wordsFrom(text string, wordDur time.Duration) []capability.TranscribedWord {
	fields := strings.Fields(text)
	ret := make([]capability.TranscribedWord, 0, len(fields))
	for i, f := range fields {
		start := time.Duration(i) * wordDur
		ret = append(ret, capability.TranscribedWord{
			Text:       f,
			Start:      start,
			End:        start + wordDur,
			Confidence: 0.9,
		})
	}
	return ret
}

func testCfg() config.SentenceConfig {
	return config.SentenceConfig{MaxWords: 24, MaxSpan: 12 * time.Second}
}

func TestAssemble_SplitsAtTerminalPunctuation(t *testing.T) {
	words := wordsFrom("Ich komme. Wir gehen.", 500*time.Millisecond)

	units := Assemble(words, language.German, testCfg())

	require.Len(t, units, 2)
	assert.Equal(t, "Ich komme.", units[0].Text())
	assert.Equal(t, "Wir gehen.", units[1].Text())
	assert.Len(t, units[0].Words, 2)
	assert.Len(t, units[1].Words, 2)
}

func TestAssemble_UnitsPartitionWordStream(t *testing.T) {
	words := wordsFrom("Eins zwei drei. Vier fünf! Sechs sieben?", 300*time.Millisecond)

	units := Assemble(words, language.German, testCfg())

	var total int
	for i, u := range units {
		require.NotEmpty(t, u.Words)
		total += len(u.Words)
		assert.Equal(t, u.Words[0].Start, u.Start)
		assert.Equal(t, u.Words[len(u.Words)-1].End, u.End)
		if i > 0 {
			assert.True(t, units[i-1].End <= u.Start)
		}
	}
	assert.Equal(t, len(words), total)
}

func TestAssemble_ForcesBoundaryAtMaxWords(t *testing.T) {
	// No punctuation anywhere, 10 words, cap at 4.
	words := wordsFrom("a b c d e f g h i j", 200*time.Millisecond)
	cfg := config.SentenceConfig{MaxWords: 4}

	units := Assemble(words, language.German, cfg)

	require.Len(t, units, 3)
	assert.Len(t, units[0].Words, 4)
	assert.Len(t, units[1].Words, 4)
	assert.Len(t, units[2].Words, 2)
}

func TestAssemble_ForcesBoundaryAtMaxSpan(t *testing.T) {
	words := wordsFrom("lange rede ohne jedes satzzeichen hier", 2*time.Second)
	cfg := config.SentenceConfig{MaxSpan: 6 * time.Second}

	units := Assemble(words, language.German, cfg)

	require.Greater(t, len(units), 1)
	for _, u := range units {
		assert.LessOrEqual(t, u.End-u.Start, 6*time.Second)
	}
}

func TestAssemble_TrailingWordsWithoutTerminatorFormFinalUnit(t *testing.T) {
	words := wordsFrom("Ich komme. Wir gehen", 500*time.Millisecond)

	units := Assemble(words, language.German, testCfg())

	require.Len(t, units, 2)
	assert.Equal(t, "Wir gehen", units[1].Text())
}

func TestAssemble_EmptyInput(t *testing.T) {
	units := Assemble(nil, language.German, testCfg())
	assert.Empty(t, units)
}

func TestEndsSentence(t *testing.T) {
	cases := map[string]bool{
		"Hallo.":   true,
		"wirklich": false,
		"Was?":     true,
		"Los!":     true,
		"Ende…":    true,
		"Schluss.\"": true,
		"sagte,":  false,
		"":        false,
	}
	for text, want := range cases {
		assert.Equal(t, want, endsSentence(text), "text %q", text)
	}
}
