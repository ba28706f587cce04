package transcript

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

// lowConfidenceThreshold marks transcripts worth a diagnostic. Words below
// it are kept: suppressing them risks losing real speech.
const lowConfidenceThreshold = 0.5

// Reconciler runs the transcription capability region by region and stitches
// the word streams back together in region order.
type Reconciler struct {
	transcriber capability.Transcriber
	runtime     config.RuntimeConfig
}

func NewReconciler(transcriber capability.Transcriber, runtime config.RuntimeConfig) *Reconciler {
	return &Reconciler{
		transcriber: transcriber,
		runtime:     runtime,
	}
}

// Transcribe transcribes every region of audio concurrently, bounded by the
// configured limit, and returns one word stream in global audio time.
// A region whose transcription fails after retries is dropped with a warning;
// the call fails only when every region fails.
func (r *Reconciler) Transcribe(ctx context.Context, audio capability.Audio, regions []capability.SpeechRegion) ([]capability.TranscribedWord, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("no speech regions to transcribe")
	}

	// Results are indexed by region position so completion order cannot
	// leak into the output order.
	perRegion := make([][]capability.TranscribedWord, len(regions))
	failed := make([]bool, len(regions))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.runtime.TranscribeConcurrency)

	for i, region := range regions {
		i, region := i, region
		group.Go(func() error {
			words, err := r.transcribeRegion(groupCtx, audio, region)
			if err != nil {
				log.Warn("Dropping region %s-%s after failed transcription: %v", region.Start, region.End, err)
				failed[i] = true
				return nil
			}
			perRegion[i] = words
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	allFailed := true
	for _, f := range failed {
		if !f {
			allFailed = false
			break
		}
	}
	if allFailed {
		return nil, fmt.Errorf("transcription failed for all %d regions", len(regions))
	}

	ret := make([]capability.TranscribedWord, 0)
	for _, words := range perRegion {
		ret = append(ret, words...)
	}

	reportLowConfidence(ret)
	return ret, nil
}

// transcribeRegion transcribes one region slice and maps word times back
// into global audio time.
func (r *Reconciler) transcribeRegion(ctx context.Context, audio capability.Audio, region capability.SpeechRegion) ([]capability.TranscribedWord, error) {
	slice := audio.Slice(region.Start, region.End)

	var words []capability.TranscribedWord
	err := capability.Retry(ctx, r.runtime.RetryCount, r.runtime.RetryBackoff, "transcribe", func() error {
		var err error
		words, err = r.transcriber.Transcribe(ctx, slice)
		return err
	})
	if err != nil {
		return nil, err
	}

	ret := make([]capability.TranscribedWord, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		w.Text = strings.TrimSpace(w.Text)
		w.Start += region.Start
		w.End += region.Start
		ret = append(ret, w)
	}

	if len(ret) == 0 {
		// Detected activity that was not speech, e.g. music. Not an error.
		log.Info("Region %s-%s transcribed to empty text, skipping", region.Start, region.End)
	}

	return ret, nil
}

func reportLowConfidence(words []capability.TranscribedWord) {
	if len(words) == 0 {
		return
	}

	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	mean := sum / float64(len(words))
	if mean < lowConfidenceThreshold {
		log.Warn("Transcript mean confidence %.2f is low, output may contain recognition errors", mean)
	}
}
