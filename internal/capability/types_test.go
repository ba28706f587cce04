package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAudioDuration(t *testing.T) {
	f := DefaultFormat
	a := Audio{Format: f, PCM: make([]byte, f.BytesPerSecond()*2)}
	assert.Equal(t, 2*time.Second, a.Duration())

	assert.Equal(t, time.Duration(0), Audio{Format: f}.Duration())
}

func TestAudioSlice(t *testing.T) {
	f := DefaultFormat
	a := Audio{Format: f, PCM: make([]byte, f.BytesPerSecond()*10)}

	slice := a.Slice(2*time.Second, 5*time.Second)
	assert.Equal(t, 3*time.Second, slice.Duration())

	// Bounds are clamped.
	slice = a.Slice(-time.Second, 20*time.Second)
	assert.Equal(t, 10*time.Second, slice.Duration())

	// Inverted ranges produce an empty clip.
	slice = a.Slice(5*time.Second, 2*time.Second)
	assert.Empty(t, slice.PCM)
}

func TestSliceIsFrameAligned(t *testing.T) {
	f := Format{SampleRate: 22050, BitDepth: 16, Channels: 1}
	a := Audio{Format: f, PCM: make([]byte, f.BytesPerSecond())}

	slice := a.Slice(333*time.Millisecond, 666*time.Millisecond)
	assert.Zero(t, len(slice.PCM)%f.FrameSize())
}
