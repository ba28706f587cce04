package capability

import (
	"context"

	"golang.org/x/text/language"
)

// RegionDetector finds speech-likely spans in raw audio. Implementations
// wrap a VAD model; the pipeline only normalizes what they return.
type RegionDetector interface {
	DetectSpeechRegions(ctx context.Context, audio Audio) ([]SpeechRegion, error)
}

// Transcriber converts one audio slice into word-level text with timing.
// Word times are relative to the given slice, not to the source recording.
type Transcriber interface {
	Transcribe(ctx context.Context, slice Audio) ([]TranscribedWord, error)
}

// Translator renders text from one language into another.
type Translator interface {
	Translate(ctx context.Context, text string, source, target language.Tag) (string, error)
}

// Synthesizer converts text to speech audio with the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)
}
