package speechapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
	"github.com/MimeLyc/lang-repetitor/internal/wav"
)

// Client talks to a speech service exposing detection, transcription,
// translation and synthesis endpoints. It implements every capability
// interface of the pipeline. Thread-safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: config.APIURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	Translation string    `json:"translation"`
	Error       *apiError `json:"error,omitempty"`
}

type synthesizeRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	Language     string `json:"language"`
	SpeedPercent int    `json:"speed_percent"`
}

type regionsResponse struct {
	Regions []struct {
		StartMS int64 `json:"start_ms"`
		EndMS   int64 `json:"end_ms"`
	} `json:"regions"`
	Error *apiError `json:"error,omitempty"`
}

type transcribeResponse struct {
	Words []struct {
		Text       string  `json:"text"`
		StartMS    int64   `json:"start_ms"`
		EndMS      int64   `json:"end_ms"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *apiError) Error() string {
	return e.Message
}

// Translate implements capability.Translator.
func (c *Client) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	var resp translateResponse
	err := c.postJSON(ctx, "/v1/translate", translateRequest{
		Text:   text,
		Source: source.String(),
		Target: target.String(),
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", resp.Error
	}
	return resp.Translation, nil
}

// Synthesize implements capability.Synthesizer. The service answers with a
// WAV body.
func (c *Client) Synthesize(ctx context.Context, text string, voice capability.Voice) (capability.Audio, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:         text,
		Voice:        voice.Name,
		Language:     voice.Language.String(),
		SpeedPercent: voice.SpeedPercent,
	})
	if err != nil {
		return capability.Audio{}, fmt.Errorf("marshal synthesize request: %w", err)
	}

	raw, err := c.post(ctx, "/v1/synthesize", "application/json", bytes.NewReader(body))
	if err != nil {
		return capability.Audio{}, err
	}
	audio, err := wav.Decode(raw)
	if err != nil {
		return capability.Audio{}, fmt.Errorf("decode synthesized audio: %w", err)
	}
	return audio, nil
}

// DetectSpeechRegions implements capability.RegionDetector. The audio is
// uploaded as a WAV body.
func (c *Client) DetectSpeechRegions(ctx context.Context, audio capability.Audio) ([]capability.SpeechRegion, error) {
	raw, err := c.post(ctx, "/v1/speech-regions", "audio/wav", bytes.NewReader(wav.Encode(audio)))
	if err != nil {
		return nil, err
	}

	var resp regionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse regions response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, resp.Error
	}

	regions := make([]capability.SpeechRegion, 0, len(resp.Regions))
	for _, r := range resp.Regions {
		regions = append(regions, capability.SpeechRegion{
			Start: time.Duration(r.StartMS) * time.Millisecond,
			End:   time.Duration(r.EndMS) * time.Millisecond,
		})
	}
	return regions, nil
}

// Transcribe implements capability.Transcriber. Word times come back
// relative to the uploaded slice.
func (c *Client) Transcribe(ctx context.Context, slice capability.Audio) ([]capability.TranscribedWord, error) {
	raw, err := c.post(ctx, "/v1/transcribe", "audio/wav", bytes.NewReader(wav.Encode(slice)))
	if err != nil {
		return nil, err
	}

	var resp transcribeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse transcribe response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, resp.Error
	}

	words := make([]capability.TranscribedWord, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, capability.TranscribedWord{
			Text:       w.Text,
			Start:      time.Duration(w.StartMS) * time.Millisecond,
			End:        time.Duration(w.EndMS) * time.Millisecond,
			Confidence: w.Confidence,
		})
	}
	return words, nil
}

func (c *Client) postJSON(ctx context.Context, path string, request any, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	raw, err := c.post(ctx, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, response); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.config.GetHeaders() {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}
	return responseBody, nil
}
