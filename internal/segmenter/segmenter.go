package segmenter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

// ErrNoSpeech reports that the detector found no speech at all in the
// source audio. Callers must surface this as a distinct outcome instead of
// compiling an empty asset.
var ErrNoSpeech = errors.New("no speech detected in audio")

// Segmenter normalizes raw detector output into ordered, disjoint speech
// regions. Transcription runs only inside these regions; feeding silence to
// the transcriber is the dominant source of hallucinated text.
type Segmenter struct {
	detector capability.RegionDetector
	cfg      config.SegmenterConfig
}

func New(detector capability.RegionDetector, cfg config.SegmenterConfig) *Segmenter {
	return &Segmenter{
		detector: detector,
		cfg:      cfg,
	}
}

// Detect returns the speech regions of audio, widened by the configured
// lead/tail, merged across silences shorter than MinSilenceGap and with
// regions shorter than MinSpeechDuration dropped.
func (s *Segmenter) Detect(ctx context.Context, audio capability.Audio) ([]capability.SpeechRegion, error) {
	if len(audio.PCM) == 0 {
		return nil, fmt.Errorf("audio is empty")
	}

	regions, err := s.detector.DetectSpeechRegions(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to detect speech regions: %w", err)
	}

	regions = s.normalize(regions, audio.Duration())
	if len(regions) == 0 {
		return nil, ErrNoSpeech
	}

	log.Info("Detected %d speech regions in %s of audio", len(regions), audio.Duration())
	return regions, nil
}

// normalize sorts, widens, merges and filters detector output so the
// result is disjoint and ordered by start time.
func (s *Segmenter) normalize(regions []capability.SpeechRegion, total time.Duration) []capability.SpeechRegion {
	ret := make([]capability.SpeechRegion, 0, len(regions))
	for _, r := range regions {
		if r.End <= r.Start {
			continue
		}
		// Widen while respecting the audio bounds.
		r.Start = r.Start - s.cfg.WidenLead
		if r.Start < 0 {
			r.Start = 0
		}
		r.End = r.End + s.cfg.WidenTail
		if r.End > total {
			r.End = total
		}
		ret = append(ret, r)
	}

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Start < ret[j].Start
	})

	// Join regions that overlap after widening or sit closer together than
	// the minimum silence gap.
	merged := make([]capability.SpeechRegion, 0, len(ret))
	for _, r := range ret {
		if len(merged) == 0 {
			merged = append(merged, r)
			continue
		}
		last := &merged[len(merged)-1]
		if r.Start-last.End < s.cfg.MinSilenceGap {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}

	kept := merged[:0]
	for _, r := range merged {
		if r.Duration() < s.cfg.MinSpeechDuration {
			log.Debug("Dropping short speech region %s-%s", r.Start, r.End)
			continue
		}
		kept = append(kept, r)
	}

	return kept
}
