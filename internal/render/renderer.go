package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/media"
	"github.com/MimeLyc/lang-repetitor/internal/subtitle"
	"github.com/MimeLyc/lang-repetitor/internal/timeline"
	"github.com/MimeLyc/lang-repetitor/internal/ttscache"
	"github.com/MimeLyc/lang-repetitor/internal/wav"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

// ErrContiguity reports a broken timeline invariant: adjacent entries must
// share a boundary. Rendering aborts on it because subtitle timing has no
// other source of truth.
var ErrContiguity = errors.New("timeline entries are not contiguous")

// ErrFormatMismatch reports artifacts that disagree on PCM layout. The
// track cannot be concatenated from mixed formats.
var ErrFormatMismatch = errors.New("audio artifacts have mismatched formats")

// Resolver maps a synthesis request to an audio artifact. Satisfied by
// *ttscache.Store.
type Resolver interface {
	Resolve(ctx context.Context, text string, voice capability.Voice) (capability.Artifact, error)
}

// Entry is one placed slot of the final media timeline. End includes the
// trailing pause so that adjacent entries stay contiguous.
type Entry struct {
	Instruction timeline.Instruction
	Artifact    capability.Artifact
	Start       time.Duration
	End         time.Duration
}

// FailedUnit records a unit excluded during rendering.
type FailedUnit struct {
	UnitID string
	Err    error
}

// Options selects output location and the optional video mux.
type Options struct {
	OutDir   string
	BaseName string
	Video    bool
}

// Result is the compiled media asset.
type Result struct {
	AudioPath    string
	SubtitlePath string
	VideoPath    string
	Timeline     []Entry
	Failed       []FailedUnit
	Duration     time.Duration
}

// Renderer resolves playback instructions to audio artifacts and assembles
// the continuous track, the subtitle track and optionally a muxed video.
type Renderer struct {
	resolver Resolver
	pipeline config.PipelineConfig
	runtime  config.RuntimeConfig
	muxFunc  func(audioPath, subtitlePath string) (string, error)
}

func NewRenderer(resolver Resolver, pipeline config.PipelineConfig, runtime config.RuntimeConfig) *Renderer {
	return &Renderer{
		resolver: resolver,
		pipeline: pipeline,
		runtime:  runtime,
		muxFunc: func(audioPath, subtitlePath string) (string, error) {
			return media.NewFfmpeg(audioPath).DefMuxVideo(subtitlePath)
		},
	}
}

// Render compiles instructions into one continuous audio track with a
// time-aligned subtitle track. Timestamps come from cumulative duration
// summation only; original transcript timestamps play no role, since
// repeated playback changes total elapsed time.
func (r *Renderer) Render(ctx context.Context, instructions []timeline.Instruction, opts Options) (*Result, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("no playback instructions to render")
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	instructions, artifacts, failed, err := r.resolveAll(ctx, instructions)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, track, err := r.assemble(instructions, artifacts)
	if err != nil {
		return nil, err
	}
	if err := verifyContiguity(entries); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	audioPath := filepath.Join(opts.OutDir, opts.BaseName+".wav")
	if err := writeTrackAtomic(audioPath, track); err != nil {
		return nil, err
	}

	subtitlePath := filepath.Join(opts.OutDir, opts.BaseName+".srt")
	if err := subtitle.NewWriter().Write(subtitlePath, subtitleTrack(entries)); err != nil {
		return nil, fmt.Errorf("write subtitle track: %w", err)
	}

	result := &Result{
		AudioPath:    audioPath,
		SubtitlePath: subtitlePath,
		Timeline:     entries,
		Failed:       failed,
		Duration:     entries[len(entries)-1].End,
	}

	if opts.Video {
		videoPath, err := r.muxFunc(audioPath, subtitlePath)
		if err != nil {
			// The audio/subtitle asset is usable on its own.
			log.Warn("Video mux failed, keeping audio-only output: %v", err)
		} else {
			result.VideoPath = videoPath
		}
	}

	return result, nil
}

// resolveAll resolves every instruction concurrently, bounded by the
// synthesis limit. A unit whose resolution fails is excluded whole, with a
// warning; consistency errors abort instead.
func (r *Renderer) resolveAll(ctx context.Context, instructions []timeline.Instruction) ([]timeline.Instruction, []capability.Artifact, []FailedUnit, error) {
	artifacts := make([]capability.Artifact, len(instructions))
	errs := make([]error, len(instructions))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.runtime.SynthesisConcurrency)
	for i, in := range instructions {
		i, in := i, in
		group.Go(func() error {
			artifact, err := r.resolver.Resolve(groupCtx, in.Text, in.Voice)
			if err != nil {
				if errors.Is(err, ttscache.ErrInconsistent) ||
					errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				errs[i] = err
				return nil
			}
			artifacts[i] = artifact
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, nil, err
	}

	// Exclude every instruction of a failed unit so a unit is never
	// rendered partially.
	failedUnits := make(map[string]error)
	for i, err := range errs {
		if err != nil {
			if _, ok := failedUnits[instructions[i].UnitID]; !ok {
				failedUnits[instructions[i].UnitID] = err
			}
		}
	}

	if len(failedUnits) == 0 {
		return instructions, artifacts, nil, nil
	}

	keptInstructions := make([]timeline.Instruction, 0, len(instructions))
	keptArtifacts := make([]capability.Artifact, 0, len(artifacts))
	failed := make([]FailedUnit, 0, len(failedUnits))
	seen := make(map[string]bool)
	for i, in := range instructions {
		if err, ok := failedUnits[in.UnitID]; ok {
			if !seen[in.UnitID] {
				seen[in.UnitID] = true
				log.Warn("Excluding unit %s from timeline after failed synthesis: %v", in.UnitID, err)
				failed = append(failed, FailedUnit{UnitID: in.UnitID, Err: err})
			}
			continue
		}
		keptInstructions = append(keptInstructions, in)
		keptArtifacts = append(keptArtifacts, artifacts[i])
	}

	if len(keptInstructions) == 0 {
		return nil, nil, failed, fmt.Errorf("synthesis failed for all units")
	}
	return keptInstructions, keptArtifacts, failed, nil
}

// assemble loads artifact PCM, places entries by cumulative duration and
// builds the continuous PCM track with trailing pauses inside each entry.
func (r *Renderer) assemble(instructions []timeline.Instruction, artifacts []capability.Artifact) ([]Entry, capability.Audio, error) {
	var track capability.Audio
	entries := make([]Entry, 0, len(instructions))
	cursor := time.Duration(0)

	for i, in := range instructions {
		clip, err := wav.ReadFile(artifacts[i].Path)
		if err != nil {
			return nil, capability.Audio{}, fmt.Errorf("read artifact for unit %s: %w", in.UnitID, err)
		}

		if i == 0 {
			track.Format = clip.Format
		} else if clip.Format != track.Format {
			return nil, capability.Audio{}, fmt.Errorf(
				"%w: %s vs %s", ErrFormatMismatch, clip.Format, track.Format)
		}

		gap := r.pipeline.RepetitionGap
		if i == len(instructions)-1 || instructions[i+1].UnitID != in.UnitID {
			gap = r.pipeline.UnitGap
		}
		silence := silencePCM(track.Format, gap)

		// Durations derive from actual PCM byte counts so the subtitle
		// timeline and the track can never drift apart.
		clipDur := clip.Duration()
		gapDur := capability.Audio{Format: track.Format, PCM: silence}.Duration()

		track.PCM = append(track.PCM, clip.PCM...)
		track.PCM = append(track.PCM, silence...)

		entries = append(entries, Entry{
			Instruction: in,
			Artifact:    artifacts[i],
			Start:       cursor,
			End:         cursor + clipDur + gapDur,
		})
		cursor += clipDur + gapDur
	}

	return entries, track, nil
}

// verifyContiguity asserts the timeline invariant before anything is
// persisted.
func verifyContiguity(entries []Entry) error {
	for i := 1; i < len(entries); i++ {
		if entries[i].Start != entries[i-1].End {
			return fmt.Errorf("%w: entry %d starts at %s, previous ends at %s",
				ErrContiguity, i, entries[i].Start, entries[i-1].End)
		}
	}
	for _, e := range entries {
		if e.End < e.Start {
			return fmt.Errorf("%w: entry for unit %s ends before it starts", ErrContiguity, e.Instruction.UnitID)
		}
	}
	return nil
}

func subtitleTrack(entries []Entry) *subtitle.Track {
	track := &subtitle.Track{Format: "SRT"}
	for i, e := range entries {
		track.Lines = append(track.Lines, subtitle.Line{
			Index:     i + 1,
			StartTime: e.Start,
			EndTime:   e.End,
			Text:      e.Instruction.Text,
		})
	}
	return track
}

// writeTrackAtomic publishes the track via temp file and rename so an
// aborted render never leaves a partial asset behind.
func writeTrackAtomic(path string, track capability.Audio) error {
	tmpPath := filepath.Join(filepath.Dir(path), "tmp-"+uuid.NewString())
	if err := wav.WriteFile(tmpPath, track); err != nil {
		return fmt.Errorf("write audio track: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish audio track: %w", err)
	}
	return nil
}

func silencePCM(format capability.Format, d time.Duration) []byte {
	if d <= 0 {
		return nil
	}
	n := int(d.Seconds() * float64(format.BytesPerSecond()))
	n = n / format.FrameSize() * format.FrameSize()
	return make([]byte, n)
}
