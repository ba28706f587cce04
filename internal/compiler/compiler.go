package compiler

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/aligner"
	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/render"
	"github.com/MimeLyc/lang-repetitor/internal/segmenter"
	"github.com/MimeLyc/lang-repetitor/internal/sentence"
	"github.com/MimeLyc/lang-repetitor/internal/timeline"
	"github.com/MimeLyc/lang-repetitor/internal/transcript"
	"github.com/MimeLyc/lang-repetitor/internal/ttscache"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

// Capabilities are the external model collaborators the compiler consumes.
// Resolver is usually a *ttscache.Store wrapping the synthesis capability.
type Capabilities struct {
	Detector    capability.RegionDetector
	Transcriber capability.Transcriber
	Translator  capability.Translator
	Resolver    render.Resolver
}

// Compiler turns bilingual learning material into a compiled media asset in
// which every source phrase is repeated N times and followed by its
// translation, with time-aligned subtitles. Both entry points converge on
// the repetition timeline.
type Compiler struct {
	cfg        config.Config
	segmenter  *segmenter.Segmenter
	reconciler *transcript.Reconciler
	aligner    *aligner.Aligner
	renderer   *render.Renderer
	policy     timeline.Policy
}

func New(cfg config.Config, caps Capabilities) *Compiler {
	return &Compiler{
		cfg:        cfg,
		segmenter:  segmenter.New(caps.Detector, cfg.Segmenter),
		reconciler: transcript.NewReconciler(caps.Transcriber, cfg.Runtime),
		aligner:    aligner.New(caps.Translator, cfg.Pipeline, cfg.Runtime),
		renderer:   render.NewRenderer(caps.Resolver, cfg.Pipeline, cfg.Runtime),
		policy:     timeline.NewPolicy(cfg.Pipeline),
	}
}

// CompileFromText compiles an ordered, authored phrase list. Phrases
// without a declared language are detected so voice selection stays
// per-language in mixed material.
func (c *Compiler) CompileFromText(ctx context.Context, phrases []aligner.Phrase, opts render.Options) (*MediaAsset, error) {
	nonEmpty := 0
	for _, p := range phrases {
		if strings.TrimSpace(p.Text) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, NewError(ErrInput, "phrase list is empty")
	}

	for i := range phrases {
		if phrases[i].Language == language.Und {
			phrases[i].Language = aligner.DetectLanguage(phrases[i].Text)
		}
	}

	units, failures, err := c.aligner.AlignPhrases(ctx, phrases)
	if err != nil {
		return nil, c.classify(err, "translation alignment failed")
	}

	return c.compile(ctx, units, failures, opts)
}

// CompileFromAudio compiles raw speech audio: speech regions are detected
// and transcribed, sentences assembled and aligned with translations, then
// the run joins the text pathway at the repetition timeline.
func (c *Compiler) CompileFromAudio(ctx context.Context, audio capability.Audio, opts render.Options) (*MediaAsset, error) {
	if len(audio.PCM) == 0 {
		return nil, NewError(ErrInput, "audio source is empty")
	}

	regions, err := c.segmenter.Detect(ctx, audio)
	if err != nil {
		if errors.Is(err, segmenter.ErrNoSpeech) {
			return nil, WrapError(err, ErrNoSpeech, "no speech detected in audio source")
		}
		return nil, c.classify(err, "speech region detection failed")
	}

	words, err := c.reconciler.Transcribe(ctx, audio, regions)
	if err != nil {
		return nil, c.classify(err, "transcription failed")
	}
	if len(words) == 0 {
		// Every detected region transcribed to empty text.
		return nil, NewError(ErrNoSpeech, "detected regions contained no transcribable speech")
	}

	sentences := sentence.Assemble(words, c.cfg.Pipeline.SourceLanguage, c.cfg.Sentence)
	log.Info("Assembled %d sentences from %d transcribed words", len(sentences), len(words))

	units, failures, err := c.aligner.AlignSentences(ctx, sentences)
	if err != nil {
		return nil, c.classify(err, "translation alignment failed")
	}

	return c.compile(ctx, units, failures, opts)
}

// compile is the convergence point of both pathways: repetition timeline,
// cache-backed synthesis and rendering.
func (c *Compiler) compile(ctx context.Context, units []aligner.BilingualUnit, alignFailures []aligner.Failure, opts render.Options) (*MediaAsset, error) {
	instructions, err := timeline.Build(units, c.policy)
	if err != nil {
		return nil, WrapError(err, ErrConfig, "failed to build repetition timeline")
	}

	result, err := c.renderer.Render(ctx, instructions, opts)
	if err != nil {
		return nil, c.classify(err, "rendering failed")
	}

	asset := &MediaAsset{
		AudioTrack:   result.AudioPath,
		SubtitleFile: result.SubtitlePath,
		VideoTrack:   result.VideoPath,
		Timeline:     result.Timeline,
		Duration:     result.Duration,
	}
	for i, e := range result.Timeline {
		asset.Subtitles = append(asset.Subtitles, subtitleLine(i+1, e))
	}
	for _, f := range alignFailures {
		asset.FailedUnits = append(asset.FailedUnits, FailedUnit{
			UnitID:     f.UnitID,
			SourceText: f.SourceText,
			Reason:     f.Err.Error(),
		})
	}
	for _, f := range result.Failed {
		asset.FailedUnits = append(asset.FailedUnits, FailedUnit{
			UnitID: f.UnitID,
			Reason: f.Err.Error(),
		})
	}

	if len(asset.FailedUnits) > 0 {
		log.Warn("Compiled asset excludes %d failed units", len(asset.FailedUnits))
	}
	return asset, nil
}

// classify maps lower-layer failures onto the error taxonomy. Broken
// invariants abort as consistency errors; everything else that crossed a
// capability boundary is a capability error.
func (c *Compiler) classify(err error, message string) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ttscache.ErrInconsistent),
		errors.Is(err, render.ErrContiguity),
		errors.Is(err, render.ErrFormatMismatch):
		return WrapError(err, ErrConsistency, message)
	default:
		return WrapError(err, ErrCapability, message)
	}
}
