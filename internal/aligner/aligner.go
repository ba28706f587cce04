package aligner

import (
	"context"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/sentence"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

// Aligner turns sentence units or authored phrases into bilingual units by
// invoking the translation capability. Translation failures are recoverable
// per unit; only a run where every unit fails is fatal to the caller.
type Aligner struct {
	translator capability.Translator
	pipeline   config.PipelineConfig
	runtime    config.RuntimeConfig
}

func New(translator capability.Translator, pipeline config.PipelineConfig, runtime config.RuntimeConfig) *Aligner {
	return &Aligner{
		translator: translator,
		pipeline:   pipeline,
		runtime:    runtime,
	}
}

// AlignSentences produces bilingual units for transcribed sentences,
// preserving order. Failed units are reported, not fatal.
func (a *Aligner) AlignSentences(ctx context.Context, units []sentence.Unit) ([]BilingualUnit, []Failure, error) {
	phrases := make([]Phrase, 0, len(units))
	for _, u := range units {
		phrases = append(phrases, Phrase{Text: u.Text(), Language: u.Language})
	}

	ret, failures, err := a.AlignPhrases(ctx, phrases)
	if err != nil {
		return nil, failures, err
	}

	// Carry sentence timing as a reference duration.
	byID := make(map[string]sentence.Unit, len(units))
	for _, u := range units {
		byID[UnitID(u.Text(), a.sourceLanguage(u.Language), a.pipeline.TargetLanguage)] = u
	}
	for i := range ret {
		if u, ok := byID[ret[i].ID]; ok {
			ret[i].RefStart = u.Start
			ret[i].RefEnd = u.End
			ret[i].Timed = true
		}
	}
	return ret, failures, nil
}

// AlignPhrases produces bilingual units for authored phrases in document
// order. Phrases that already carry a translation skip the capability call.
func (a *Aligner) AlignPhrases(ctx context.Context, phrases []Phrase) ([]BilingualUnit, []Failure, error) {
	if len(phrases) == 0 {
		return nil, nil, fmt.Errorf("phrase list is empty")
	}

	ret := make([]BilingualUnit, 0, len(phrases))
	failures := make([]Failure, 0)

	for _, p := range phrases {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}

		source := a.sourceLanguage(p.Language)
		id := UnitID(text, source, a.pipeline.TargetLanguage)

		translation := strings.TrimSpace(p.Translation)
		if translation == "" {
			var err error
			translation, err = a.translate(ctx, text, source)
			if err != nil {
				if ctx.Err() != nil {
					return nil, failures, ctx.Err()
				}
				log.Warn("Excluding unit %q after failed translation: %v", text, err)
				failures = append(failures, Failure{UnitID: id, SourceText: text, Err: err})
				continue
			}
		}

		ret = append(ret, BilingualUnit{
			ID:              id,
			SourceText:      text,
			SourceLanguage:  source,
			TranslationText: translation,
			TargetLanguage:  a.pipeline.TargetLanguage,
		})
	}

	if len(ret) == 0 {
		return nil, failures, fmt.Errorf("translation failed for all %d phrases", len(phrases))
	}
	return ret, failures, nil
}

// translate calls the capability with bounded retry. A successful call that
// returns empty text counts as a capability failure.
func (a *Aligner) translate(ctx context.Context, text string, source language.Tag) (string, error) {
	var translation string
	err := capability.Retry(ctx, a.runtime.RetryCount, a.runtime.RetryBackoff, "translate", func() error {
		out, err := a.translator.Translate(ctx, text, source, a.pipeline.TargetLanguage)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return fmt.Errorf("translator returned empty text")
		}
		translation = strings.TrimSpace(out)
		return nil
	})
	return translation, err
}

// sourceLanguage resolves an und tag against the detected or configured
// source language.
func (a *Aligner) sourceLanguage(tag language.Tag) language.Tag {
	if tag != language.Und {
		return tag
	}
	return a.pipeline.SourceLanguage
}

// DetectLanguage guesses the language of authored text. Used in text mode
// when a phrase does not declare a language, so voice selection stays
// per-language even in mixed material.
func DetectLanguage(text string) language.Tag {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return language.Und
	}
	return language.Make(info.Lang.Iso6391())
}
