package aligner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/sentence"
)

type translatorFunc func(ctx context.Context, text string, source, target language.Tag) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	return f(ctx, text, source, target)
}

func testPipeline() config.PipelineConfig {
	return config.PipelineConfig{
		RepetitionCount: 3,
		SourceLanguage:  language.German,
		TargetLanguage:  language.English,
	}
}

func testRuntime() config.RuntimeConfig {
	return config.RuntimeConfig{RetryCount: 2, RetryBackoff: time.Millisecond}
}

func staticTranslator(out string) capability.Translator {
	return translatorFunc(func(_ context.Context, _ string, _, _ language.Tag) (string, error) {
		return out, nil
	})
}

func TestAlignPhrases_TranslatesEachPhrase(t *testing.T) {
	a := New(staticTranslator("good morning"), testPipeline(), testRuntime())

	units, failures, err := a.AlignPhrases(context.Background(), []Phrase{
		{Text: "Guten Morgen"},
	})
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Len(t, units, 1)

	assert.Equal(t, "Guten Morgen", units[0].SourceText)
	assert.Equal(t, "good morning", units[0].TranslationText)
	assert.Equal(t, language.German, units[0].SourceLanguage)
	assert.Equal(t, language.English, units[0].TargetLanguage)
	assert.False(t, units[0].Timed)
}

func TestAlignPhrases_AuthoredTranslationSkipsCapability(t *testing.T) {
	var calls int
	tr := translatorFunc(func(_ context.Context, _ string, _, _ language.Tag) (string, error) {
		calls++
		return "unused", nil
	})
	a := New(tr, testPipeline(), testRuntime())

	units, _, err := a.AlignPhrases(context.Background(), []Phrase{
		{Text: "Guten Morgen", Translation: "good morning"},
	})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "good morning", units[0].TranslationText)
	assert.Zero(t, calls)
}

func TestAlignPhrases_FailedUnitExcludedOthersKept(t *testing.T) {
	tr := translatorFunc(func(_ context.Context, text string, _, _ language.Tag) (string, error) {
		if text == "kaputt" {
			return "", errors.New("api down")
		}
		return "ok", nil
	})
	a := New(tr, testPipeline(), testRuntime())

	units, failures, err := a.AlignPhrases(context.Background(), []Phrase{
		{Text: "eins"},
		{Text: "kaputt"},
		{Text: "drei"},
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	require.Len(t, failures, 1)

	assert.Equal(t, "kaputt", failures[0].SourceText)
	assert.Equal(t, "eins", units[0].SourceText)
	assert.Equal(t, "drei", units[1].SourceText)
}

func TestAlignPhrases_AllFailedIsFatal(t *testing.T) {
	tr := translatorFunc(func(_ context.Context, _ string, _, _ language.Tag) (string, error) {
		return "", errors.New("api down")
	})
	a := New(tr, testPipeline(), testRuntime())

	_, failures, err := a.AlignPhrases(context.Background(), []Phrase{{Text: "eins"}, {Text: "zwei"}})
	require.Error(t, err)
	assert.Len(t, failures, 2)
}

func TestAlignPhrases_EmptyTranslationIsCapabilityError(t *testing.T) {
	a := New(staticTranslator("   "), testPipeline(), testRuntime())

	_, failures, err := a.AlignPhrases(context.Background(), []Phrase{{Text: "eins"}})
	require.Error(t, err)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "empty")
}

func TestAlignSentences_CarriesReferenceTiming(t *testing.T) {
	a := New(staticTranslator("I am coming."), testPipeline(), testRuntime())

	units, _, err := a.AlignSentences(context.Background(), []sentence.Unit{
		{
			Words: []capability.TranscribedWord{
				{Text: "Ich", Start: time.Second, End: 1500 * time.Millisecond},
				{Text: "komme.", Start: 1600 * time.Millisecond, End: 2 * time.Second},
			},
			Start:    time.Second,
			End:      2 * time.Second,
			Language: language.German,
		},
	})
	require.NoError(t, err)
	require.Len(t, units, 1)

	assert.True(t, units[0].Timed)
	assert.Equal(t, time.Second, units[0].RefStart)
	assert.Equal(t, 2*time.Second, units[0].RefEnd)
	assert.Equal(t, "Ich komme.", units[0].SourceText)
}

func TestUnitID_Deterministic(t *testing.T) {
	a := UnitID("Guten Morgen", language.German, language.English)
	b := UnitID("  Guten Morgen  ", language.German, language.English)
	c := UnitID("Guten Morgen", language.German, language.Russian)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, language.Make("de"), DetectLanguage("Das ist ein ganz normaler deutscher Satz über das Wetter."))
}
