package capability

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Format describes the raw PCM layout of an audio payload.
type Format struct {
	SampleRate int // samples per second, e.g. 22050
	BitDepth   int // bits per sample, e.g. 16
	Channels   int // 1 = mono
}

// DefaultFormat is the pipeline-wide PCM layout. Synthesized and source
// audio are normalized to it before entering the pipeline.
var DefaultFormat = Format{
	SampleRate: 22050,
	BitDepth:   16,
	Channels:   1,
}

// BytesPerSecond returns the PCM byte rate for the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * (f.BitDepth / 8) * f.Channels
}

// FrameSize returns the byte size of one sample frame.
func (f Format) FrameSize() int {
	return (f.BitDepth / 8) * f.Channels
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dbit/%dch", f.SampleRate, f.BitDepth, f.Channels)
}

// Audio holds a raw PCM clip without container framing.
type Audio struct {
	Format Format
	PCM    []byte
}

// Duration derives the clip length from the PCM byte count.
func (a Audio) Duration() time.Duration {
	bps := a.Format.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(float64(len(a.PCM)) / float64(bps) * float64(time.Second))
}

// Slice cuts the clip to [start, end), clamped to the clip bounds and
// aligned to whole sample frames. The returned slice shares the backing
// array with the source.
func (a Audio) Slice(start, end time.Duration) Audio {
	if start < 0 {
		start = 0
	}
	if end > a.Duration() {
		end = a.Duration()
	}
	if end <= start {
		return Audio{Format: a.Format}
	}

	frame := a.Format.FrameSize()
	bps := a.Format.BytesPerSecond()
	startByte := int(start.Seconds()*float64(bps)) / frame * frame
	endByte := int(end.Seconds()*float64(bps)) / frame * frame
	if endByte > len(a.PCM) {
		endByte = len(a.PCM)
	}
	if startByte >= endByte {
		return Audio{Format: a.Format}
	}

	return Audio{Format: a.Format, PCM: a.PCM[startByte:endByte]}
}

// SpeechRegion is a contiguous audio span judged to contain speech.
type SpeechRegion struct {
	Start time.Duration
	End   time.Duration
}

func (r SpeechRegion) Duration() time.Duration {
	return r.End - r.Start
}

// TranscribedWord is a single recognized word with timing relative to the
// audio the transcriber was given.
type TranscribedWord struct {
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Voice identifies one synthesis voice. SpeedPercent is part of the voice
// identity because it changes the produced audio.
type Voice struct {
	Name         string       // engine voice name, e.g. "de-DE-Standard-A"
	Language     language.Tag // language the voice speaks
	SpeedPercent int          // 100 = natural speed
}

// Artifact references one synthesized or cached audio clip on disk.
type Artifact struct {
	Path     string
	Format   Format
	Duration time.Duration
}
