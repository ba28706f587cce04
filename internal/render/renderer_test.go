package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/aligner"
	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/timeline"
	"github.com/MimeLyc/lang-repetitor/internal/wav"
)

// fileResolver synthesizes deterministic clips straight to disk, one second
// of audio per request, and can fail selected texts.
type fileResolver struct {
	dir      string
	failText string
	clipDur  time.Duration
}

func (r *fileResolver) Resolve(_ context.Context, text string, voice capability.Voice) (capability.Artifact, error) {
	if r.failText != "" && text == r.failText {
		return capability.Artifact{}, errors.New("synthesis down")
	}
	d := r.clipDur
	if d == 0 {
		d = time.Second
	}
	f := capability.DefaultFormat
	n := int(d.Seconds()*float64(f.BytesPerSecond())) / f.FrameSize() * f.FrameSize()
	audio := capability.Audio{Format: f, PCM: make([]byte, n)}

	name := strings.ReplaceAll(text, " ", "_") + "_" + voice.Name + ".wav"
	path := filepath.Join(r.dir, name)
	if err := wav.WriteFile(path, audio); err != nil {
		return capability.Artifact{}, err
	}
	return capability.Artifact{Path: path, Format: f, Duration: d}, nil
}

func testPipeline() config.PipelineConfig {
	return config.PipelineConfig{
		RepetitionCount:   3,
		SourceLanguage:    language.German,
		TargetLanguage:    language.English,
		SourceVoice:       "de-DE-Standard-A",
		TargetVoice:       "en-US-Standard-C",
		VoiceSpeedPercent: 100,
		RepetitionGap:     500 * time.Millisecond,
		UnitGap:           time.Second,
	}
}

func testRuntime() config.RuntimeConfig {
	return config.RuntimeConfig{
		TranscribeConcurrency: 2,
		SynthesisConcurrency:  4,
		RetryCount:            2,
		RetryBackoff:          time.Millisecond,
	}
}

func buildInstructions(t *testing.T, units ...aligner.BilingualUnit) []timeline.Instruction {
	t.Helper()
	policy := timeline.NewPolicy(testPipeline())
	instructions, err := timeline.Build(units, policy)
	require.NoError(t, err)
	return instructions
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

func newTestRenderer(t *testing.T, resolver Resolver) *Renderer {
	t.Helper()
	r := NewRenderer(resolver, testPipeline(), testRuntime())
	r.muxFunc = func(_, _ string) (string, error) {
		return "", errors.New("ffmpeg unavailable in tests")
	}
	return r
}

func TestRender_SingleUnitFourEntryContiguousTimeline(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir})

	result, err := r.Render(context.Background(),
		buildInstructions(t, unit("u1", "Guten Morgen", "good morning")),
		Options{OutDir: dir, BaseName: "lesson"})
	require.NoError(t, err)

	require.Len(t, result.Timeline, 4)
	assert.Equal(t, time.Duration(0), result.Timeline[0].Start)
	for i := 1; i < 4; i++ {
		assert.Equal(t, result.Timeline[i-1].End, result.Timeline[i].Start,
			"entry %d must start where entry %d ends", i, i-1)
	}
	// Three repetitions carry the repetition gap, the translation the unit gap.
	assert.Equal(t, 1500*time.Millisecond, result.Timeline[0].End)
	assert.Equal(t, result.Duration, result.Timeline[3].End)
}

func TestRender_TimestampsAreNonDecreasing(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir})

	result, err := r.Render(context.Background(),
		buildInstructions(t,
			unit("u1", "eins", "one"),
			unit("u2", "zwei", "two"),
		),
		Options{OutDir: dir, BaseName: "lesson"})
	require.NoError(t, err)

	prev := time.Duration(-1)
	for _, e := range result.Timeline {
		assert.GreaterOrEqual(t, e.Start, prev)
		assert.GreaterOrEqual(t, e.End, e.Start)
		prev = e.End
	}
}

func TestRender_SubtitleTextDiffersForTranslationEntry(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir})

	result, err := r.Render(context.Background(),
		buildInstructions(t, unit("u1", "Guten Morgen", "good morning")),
		Options{OutDir: dir, BaseName: "lesson"})
	require.NoError(t, err)

	data, err := os.ReadFile(result.SubtitlePath)
	require.NoError(t, err)

	text := string(data)
	assert.Equal(t, 3, strings.Count(text, "Guten Morgen"))
	assert.Equal(t, 1, strings.Count(text, "good morning"))
}

func TestRender_AudioTrackMatchesTimelineDuration(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir})

	result, err := r.Render(context.Background(),
		buildInstructions(t, unit("u1", "Guten Morgen", "good morning")),
		Options{OutDir: dir, BaseName: "lesson"})
	require.NoError(t, err)

	track, err := wav.ReadFile(result.AudioPath)
	require.NoError(t, err)
	assert.Equal(t, result.Duration, track.Duration())
}

func TestRender_FailedUnitExcludedTimelineStaysContiguous(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir, failText: "zwei"})

	result, err := r.Render(context.Background(),
		buildInstructions(t,
			unit("u1", "eins", "one"),
			unit("u2", "zwei", "two"),
			unit("u3", "drei", "three"),
		),
		Options{OutDir: dir, BaseName: "lesson"})
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "u2", result.Failed[0].UnitID)

	// 2 surviving units * (3 repetitions + 1 translation).
	require.Len(t, result.Timeline, 8)
	for i := 1; i < len(result.Timeline); i++ {
		assert.Equal(t, result.Timeline[i-1].End, result.Timeline[i].Start)
	}
	for _, e := range result.Timeline {
		assert.NotEqual(t, "u2", e.Instruction.UnitID)
	}
}

func TestRender_AllUnitsFailedIsFatal(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir, failText: "eins"})

	_, err := r.Render(context.Background(),
		buildInstructions(t, unit("u1", "eins", "one")),
		Options{OutDir: dir, BaseName: "lesson"})
	require.Error(t, err)
}

func TestRender_MuxFailureDegradesToAudioOnly(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir})

	result, err := r.Render(context.Background(),
		buildInstructions(t, unit("u1", "Guten Morgen", "good morning")),
		Options{OutDir: dir, BaseName: "lesson", Video: true})
	require.NoError(t, err)

	assert.Empty(t, result.VideoPath)
	assert.NotEmpty(t, result.AudioPath)
	_, statErr := os.Stat(result.AudioPath)
	assert.NoError(t, statErr)
}

func TestRender_CancelledContextAborts(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(t, &fileResolver{dir: dir})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx,
		buildInstructions(t, unit("u1", "Guten Morgen", "good morning")),
		Options{OutDir: dir, BaseName: "lesson"})
	require.Error(t, err)

	// No partial asset may survive an aborted render.
	_, statErr := os.Stat(filepath.Join(dir, "lesson.wav"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRender_EmptyInstructionsRejected(t *testing.T) {
	r := newTestRenderer(t, &fileResolver{dir: t.TempDir()})
	_, err := r.Render(context.Background(), nil, Options{OutDir: t.TempDir(), BaseName: "x"})
	require.Error(t, err)
}
