package compiler

import (
	"time"

	"github.com/MimeLyc/lang-repetitor/internal/render"
	"github.com/MimeLyc/lang-repetitor/internal/subtitle"
)

// MediaAsset is the compiled output of one run: a continuous audio track,
// a time-aligned subtitle track and optionally a muxed video.
type MediaAsset struct {
	AudioTrack   string
	SubtitleFile string
	VideoTrack   string // empty when muxing was disabled or degraded
	Subtitles    []subtitle.Line
	Timeline     []render.Entry
	Duration     time.Duration
	FailedUnits  []FailedUnit
}

// FailedUnit reports a unit excluded from the asset after retries
// exhausted, so callers can surface a warning without failing the run.
type FailedUnit struct {
	UnitID     string
	SourceText string
	Reason     string
}

func subtitleLine(index int, e render.Entry) subtitle.Line {
	return subtitle.Line{
		Index:     index,
		StartTime: e.Start,
		EndTime:   e.End,
		Text:      e.Instruction.Text,
	}
}
