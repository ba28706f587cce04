package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/aligner"
	"github.com/MimeLyc/lang-repetitor/internal/config"
)

func testPolicy(n int) Policy {
	return NewPolicy(config.PipelineConfig{
		RepetitionCount:   n,
		SourceLanguage:    language.German,
		TargetLanguage:    language.English,
		SourceVoice:       "de-DE-Standard-A",
		TargetVoice:       "en-US-Standard-C",
		VoiceSpeedPercent: 100,
	})
}

func unit(id, source, translation string) aligner.BilingualUnit {
	return aligner.BilingualUnit{
		ID:              id,
		SourceText:      source,
		SourceLanguage:  language.German,
		TranslationText: translation,
		TargetLanguage:  language.English,
	}
}

func TestBuild_RepetitionsThenTranslation(t *testing.T) {
	instructions, err := Build([]aligner.BilingualUnit{
		unit("u1", "Guten Morgen", "good morning"),
	}, testPolicy(3))
	require.NoError(t, err)
	require.Len(t, instructions, 4)

	for i := 0; i < 3; i++ {
		assert.Equal(t, i, instructions[i].Repetition)
		assert.Equal(t, "Guten Morgen", instructions[i].Text)
		assert.Equal(t, language.German, instructions[i].Language)
		assert.Equal(t, "de-DE-Standard-A", instructions[i].Voice.Name)
	}

	last := instructions[3]
	assert.Equal(t, 3, last.Repetition)
	assert.True(t, last.IsTranslation(3))
	assert.Equal(t, "good morning", last.Text)
	assert.Equal(t, "en-US-Standard-C", last.Voice.Name)
}

func TestBuild_AnyRepetitionCount(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8} {
		instructions, err := Build([]aligner.BilingualUnit{
			unit("u1", "eins", "one"),
		}, testPolicy(n))
		require.NoError(t, err)
		require.Len(t, instructions, n+1, "N=%d", n)

		for i := 0; i < n; i++ {
			assert.Equal(t, language.German, instructions[i].Language)
			assert.Equal(t, i, instructions[i].Repetition)
		}
		assert.Equal(t, language.English, instructions[n].Language)
		assert.Equal(t, n, instructions[n].Repetition)
	}
}

func TestBuild_PreservesUnitOrder(t *testing.T) {
	instructions, err := Build([]aligner.BilingualUnit{
		unit("u1", "eins", "one"),
		unit("u2", "zwei", "two"),
		unit("u3", "drei", "three"),
	}, testPolicy(2))
	require.NoError(t, err)
	require.Len(t, instructions, 9)

	var order []string
	for _, in := range instructions {
		if len(order) == 0 || order[len(order)-1] != in.UnitID {
			order = append(order, in.UnitID)
		}
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, order)
}

func TestBuild_RejectsZeroRepetitions(t *testing.T) {
	_, err := Build(nil, Policy{Repetitions: 0})
	require.Error(t, err)
}

func TestVoiceFor_FallsBackToSourceVoice(t *testing.T) {
	p := testPolicy(3)

	assert.Equal(t, "en-US-Standard-C", p.VoiceFor(language.English).Name)
	assert.Equal(t, "de-DE-Standard-A", p.VoiceFor(language.Russian).Name)
}
