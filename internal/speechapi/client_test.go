package speechapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/wav"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		APIURL:  server.URL,
		APIKey:  "test-key",
		Timeout: 5,
	})
	require.NoError(t, err)
	return client
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Timeout: 30}
	require.Error(t, cfg.Validate())

	cfg.APIURL = "http://localhost:8080"
	require.NoError(t, cfg.Validate())

	cfg.Timeout = 0
	require.Error(t, cfg.Validate())
}

func TestClientTranslate(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/translate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Guten Morgen", req.Text)
		assert.Equal(t, "de", req.Source)
		assert.Equal(t, "en", req.Target)

		json.NewEncoder(w).Encode(translateResponse{Translation: "Good morning"})
	}))

	out, err := client.Translate(context.Background(), "Guten Morgen", language.German, language.English)
	require.NoError(t, err)
	assert.Equal(t, "Good morning", out)
}

func TestClientTranslateAPIError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(translateResponse{Error: &apiError{Message: "quota exceeded"}})
	}))

	_, err := client.Translate(context.Background(), "Guten Morgen", language.German, language.English)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestClientSynthesizeDecodesWAV(t *testing.T) {
	format := capability.DefaultFormat
	pcm := make([]byte, format.BytesPerSecond()/2)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/synthesize", r.URL.Path)

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "de-DE-Standard-A", req.Voice)
		assert.Equal(t, 100, req.SpeedPercent)

		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav.Encode(capability.Audio{Format: format, PCM: pcm}))
	}))

	audio, err := client.Synthesize(context.Background(), "Guten Morgen", capability.Voice{
		Name:         "de-DE-Standard-A",
		Language:     language.German,
		SpeedPercent: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, format, audio.Format)
	assert.Len(t, audio.PCM, len(pcm))
	assert.Equal(t, 500*time.Millisecond, audio.Duration())
}

func TestClientDetectSpeechRegions(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speech-regions", r.URL.Path)
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))

		w.Write([]byte(`{"regions":[{"start_ms":250,"end_ms":1750},{"start_ms":3000,"end_ms":4200}]}`))
	}))

	format := capability.DefaultFormat
	audio := capability.Audio{Format: format, PCM: make([]byte, 5*format.BytesPerSecond())}
	regions, err := client.DetectSpeechRegions(context.Background(), audio)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, 250*time.Millisecond, regions[0].Start)
	assert.Equal(t, 1750*time.Millisecond, regions[0].End)
	assert.Equal(t, 3*time.Second, regions[1].Start)
}

func TestClientTranscribe(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transcribe", r.URL.Path)

		w.Write([]byte(`{"words":[
			{"text":"Guten","start_ms":100,"end_ms":500,"confidence":0.97},
			{"text":"Morgen","start_ms":600,"end_ms":1000,"confidence":0.93}
		]}`))
	}))

	format := capability.DefaultFormat
	slice := capability.Audio{Format: format, PCM: make([]byte, format.BytesPerSecond())}
	words, err := client.Transcribe(context.Background(), slice)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "Guten", words[0].Text)
	assert.Equal(t, 100*time.Millisecond, words[0].Start)
	assert.InDelta(t, 0.93, words[1].Confidence, 1e-9)
}

func TestClientHTTPErrorStatus(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))

	_, err := client.Translate(context.Background(), "x", language.German, language.English)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
