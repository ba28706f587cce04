package timeline

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/aligner"
	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
)

// Instruction is one playback step: a text in a language, spoken by a
// voice, at a position in the repetition sequence. Repetition runs
// 0..N-1 for the source language; the translation carries index N.
type Instruction struct {
	UnitID     string
	Language   language.Tag
	Text       string
	Repetition int
	Voice      capability.Voice
}

// IsTranslation reports whether the instruction plays the translated text.
func (i Instruction) IsTranslation(repetitions int) bool {
	return i.Repetition == repetitions
}

// Policy is the repetition-then-translation rule plus voice selection.
// It is the single convergence point of the text and audio pathways.
type Policy struct {
	Repetitions int
	voices      map[string]capability.Voice
	fallback    capability.Voice
}

// NewPolicy builds the policy from configuration: one voice for the source
// language, one for the target language, source voice as fallback for
// units in any other detected language.
func NewPolicy(cfg config.PipelineConfig) Policy {
	source := capability.Voice{
		Name:         cfg.SourceVoice,
		Language:     cfg.SourceLanguage,
		SpeedPercent: cfg.VoiceSpeedPercent,
	}
	target := capability.Voice{
		Name:         cfg.TargetVoice,
		Language:     cfg.TargetLanguage,
		SpeedPercent: cfg.VoiceSpeedPercent,
	}
	return Policy{
		Repetitions: cfg.RepetitionCount,
		voices: map[string]capability.Voice{
			cfg.SourceLanguage.String(): source,
			cfg.TargetLanguage.String(): target,
		},
		fallback: source,
	}
}

// VoiceFor returns the voice configured for a language, falling back to the
// source voice for languages without one.
func (p Policy) VoiceFor(lang language.Tag) capability.Voice {
	if v, ok := p.voices[lang.String()]; ok {
		return v
	}
	return p.fallback
}

// unitState tracks the per-unit emission state machine:
// pending → repeating(0..N-1) → translating → done. Transitions are
// strictly sequential; a state is never skipped or revisited.
type unitState int

const (
	statePending unitState = iota
	stateRepeating
	stateTranslating
	stateDone
)

// Build emits the ordered playback instructions for units: N consecutive
// source-language repetitions, then exactly one translation, per unit, with
// units in their original document or transcript order.
func Build(units []aligner.BilingualUnit, policy Policy) ([]Instruction, error) {
	if policy.Repetitions < 1 {
		return nil, fmt.Errorf("repetition count must be at least 1, got %d", policy.Repetitions)
	}

	ret := make([]Instruction, 0, len(units)*(policy.Repetitions+1))
	for _, unit := range units {
		state := statePending
		repetition := 0

		for state != stateDone {
			switch state {
			case statePending:
				state = stateRepeating

			case stateRepeating:
				ret = append(ret, Instruction{
					UnitID:     unit.ID,
					Language:   unit.SourceLanguage,
					Text:       unit.SourceText,
					Repetition: repetition,
					Voice:      policy.VoiceFor(unit.SourceLanguage),
				})
				repetition++
				if repetition == policy.Repetitions {
					state = stateTranslating
				}

			case stateTranslating:
				ret = append(ret, Instruction{
					UnitID:     unit.ID,
					Language:   unit.TargetLanguage,
					Text:       unit.TranslationText,
					Repetition: policy.Repetitions,
					Voice:      policy.VoiceFor(unit.TargetLanguage),
				})
				state = stateDone
			}
		}
	}

	return ret, nil
}
