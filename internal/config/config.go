package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// Pipeline Configuration:
// - REPETITION_COUNT: times each source phrase is repeated before its translation (default: 3)
// - SOURCE_LANGUAGE: BCP 47 tag of the learned language (default: de)
// - TARGET_LANGUAGE: BCP 47 tag of the translation language (default: en)
// - SOURCE_VOICE: TTS voice for the source language (default: de-DE-Standard-A)
// - TARGET_VOICE: TTS voice for the target language (default: en-US-Standard-C)
// - VOICE_SPEED_PERCENT: TTS speed, 100 = natural (default: 100)
// - REPETITION_GAP: silence between repetitions of one phrase (default: 800ms)
// - UNIT_GAP: silence between phrase units (default: 1500ms)
//
// Segmenter Configuration:
// - MIN_SILENCE_GAP: regions closer than this are merged (default: 700ms)
// - MIN_SPEECH_DURATION: regions shorter than this are dropped (default: 250ms)
// - REGION_WIDEN_LEAD: region start is widened backwards by this much (default: 250ms)
// - REGION_WIDEN_TAIL: region end is widened forwards by this much (default: 2s)
//
// Sentence Configuration:
// - SENTENCE_MAX_WORDS: forced boundary after this many words (default: 24)
// - SENTENCE_MAX_SPAN: forced boundary after this much audio time (default: 12s)
//
// Concurrency and Retry:
// - TRANSCRIBE_CONCURRENCY: parallel region transcriptions (default: 2)
// - SYNTHESIS_CONCURRENCY: parallel synthesis resolutions (default: 4)
// - RETRY_COUNT: capability call attempts before a unit is marked failed (default: 3)
// - RETRY_BACKOFF: base backoff between attempts, doubled per attempt (default: 500ms)
//
// Storage and Service:
// - CACHE_DIR: on-disk synthesis cache root (default: ./tts_cache)
// - DATA_DIR: sqlite data directory for the job queue (default: ./data)
// - WATCH_DIR: phrase-file drop directory for scheduled mode (optional)
// - OUTPUT_DIR: compiled asset output directory (default: ./out)
// - CRON_EXPR: schedule for the watch scan (default: "@every 5m")
// - WORKER_COUNT: compile job workers (default: 1)
// - LOG_LEVEL: DEBUG, INFO, WARN, ERROR (default: INFO)
//
// Speech Service:
// - SPEECH_API_URL: speech service endpoint URL (required for the binary)
// - SPEECH_API_KEY: speech service API key (optional)
// - SPEECH_API_TIMEOUT: request timeout in seconds (default: 60)

type Config struct {
	Pipeline  PipelineConfig  `json:"pipeline"`
	Segmenter SegmenterConfig `json:"segmenter"`
	Sentence  SentenceConfig  `json:"sentence"`
	Runtime   RuntimeConfig   `json:"runtime"`
	Storage   StorageConfig   `json:"storage"`
	Service   ServiceConfig   `json:"service"`
	Speech    SpeechConfig    `json:"speech"`
}

// PipelineConfig holds the repetition policy and voice selection.
type PipelineConfig struct {
	RepetitionCount   int           `json:"repetition_count"`
	SourceLanguage    language.Tag  `json:"source_language"`
	TargetLanguage    language.Tag  `json:"target_language"`
	SourceVoice       string        `json:"source_voice"`
	TargetVoice       string        `json:"target_voice"`
	VoiceSpeedPercent int           `json:"voice_speed_percent"`
	RepetitionGap     time.Duration `json:"repetition_gap"`
	UnitGap           time.Duration `json:"unit_gap"`
}

// SegmenterConfig bounds speech region normalization.
type SegmenterConfig struct {
	MinSilenceGap     time.Duration `json:"min_silence_gap"`
	MinSpeechDuration time.Duration `json:"min_speech_duration"`
	WidenLead         time.Duration `json:"widen_lead"`
	WidenTail         time.Duration `json:"widen_tail"`
}

// SentenceConfig bounds sentence assembly.
type SentenceConfig struct {
	MaxWords int           `json:"max_words"`
	MaxSpan  time.Duration `json:"max_span"`
}

// RuntimeConfig holds concurrency limits and retry policy.
type RuntimeConfig struct {
	TranscribeConcurrency int           `json:"transcribe_concurrency"`
	SynthesisConcurrency  int           `json:"synthesis_concurrency"`
	RetryCount            int           `json:"retry_count"`
	RetryBackoff          time.Duration `json:"retry_backoff"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	CacheDir string `json:"cache_dir"`
	DataDir  string `json:"data_dir"`
}

// SpeechConfig points at the external speech service. Validated by the
// client that consumes it, so library use without the binary stays free
// of it.
type SpeechConfig struct {
	APIURL  string `json:"api_url"`
	APIKey  string `json:"api_key"`
	Timeout int    `json:"timeout"`
}

// ServiceConfig holds the scheduled library mode settings.
type ServiceConfig struct {
	WatchDir    string `json:"watch_dir"`
	OutputDir   string `json:"output_dir"`
	CronExpr    string `json:"cron_expr"`
	WorkerCount int    `json:"worker_count"`
	LogLevel    string `json:"log_level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Pipeline: PipelineConfig{
			RepetitionCount:   getEnvInt("REPETITION_COUNT", 3),
			SourceLanguage:    getEnvLanguage("SOURCE_LANGUAGE", language.German),
			TargetLanguage:    getEnvLanguage("TARGET_LANGUAGE", language.English),
			SourceVoice:       getEnvString("SOURCE_VOICE", "de-DE-Standard-A"),
			TargetVoice:       getEnvString("TARGET_VOICE", "en-US-Standard-C"),
			VoiceSpeedPercent: getEnvInt("VOICE_SPEED_PERCENT", 100),
			RepetitionGap:     getEnvDuration("REPETITION_GAP", 800*time.Millisecond),
			UnitGap:           getEnvDuration("UNIT_GAP", 1500*time.Millisecond),
		},
		Segmenter: SegmenterConfig{
			MinSilenceGap:     getEnvDuration("MIN_SILENCE_GAP", 700*time.Millisecond),
			MinSpeechDuration: getEnvDuration("MIN_SPEECH_DURATION", 250*time.Millisecond),
			WidenLead:         getEnvDuration("REGION_WIDEN_LEAD", 250*time.Millisecond),
			WidenTail:         getEnvDuration("REGION_WIDEN_TAIL", 2*time.Second),
		},
		Sentence: SentenceConfig{
			MaxWords: getEnvInt("SENTENCE_MAX_WORDS", 24),
			MaxSpan:  getEnvDuration("SENTENCE_MAX_SPAN", 12*time.Second),
		},
		Runtime: RuntimeConfig{
			TranscribeConcurrency: getEnvInt("TRANSCRIBE_CONCURRENCY", 2),
			SynthesisConcurrency:  getEnvInt("SYNTHESIS_CONCURRENCY", 4),
			RetryCount:            getEnvInt("RETRY_COUNT", 3),
			RetryBackoff:          getEnvDuration("RETRY_BACKOFF", 500*time.Millisecond),
		},
		Storage: StorageConfig{
			CacheDir: getEnvString("CACHE_DIR", "./tts_cache"),
			DataDir:  getEnvString("DATA_DIR", "./data"),
		},
		Service: ServiceConfig{
			WatchDir:    getEnvString("WATCH_DIR", ""),
			OutputDir:   getEnvString("OUTPUT_DIR", "./out"),
			CronExpr:    getEnvString("CRON_EXPR", "@every 5m"),
			WorkerCount: getEnvInt("WORKER_COUNT", 1),
			LogLevel:    getEnvString("LOG_LEVEL", "INFO"),
		},
		Speech: SpeechConfig{
			APIURL:  getEnvString("SPEECH_API_URL", ""),
			APIKey:  getEnvString("SPEECH_API_KEY", ""),
			Timeout: getEnvInt("SPEECH_API_TIMEOUT", 60),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Pipeline.RepetitionCount < 1 {
		return fmt.Errorf("REPETITION_COUNT must be at least 1")
	}
	if c.Pipeline.SourceLanguage == language.Und || c.Pipeline.TargetLanguage == language.Und {
		return fmt.Errorf("SOURCE_LANGUAGE and TARGET_LANGUAGE are required")
	}
	if c.Pipeline.SourceLanguage == c.Pipeline.TargetLanguage {
		return fmt.Errorf("SOURCE_LANGUAGE and TARGET_LANGUAGE must differ")
	}
	if c.Pipeline.VoiceSpeedPercent <= 0 {
		return fmt.Errorf("VOICE_SPEED_PERCENT must be positive")
	}
	if c.Runtime.TranscribeConcurrency < 1 || c.Runtime.SynthesisConcurrency < 1 {
		return fmt.Errorf("concurrency limits must be at least 1")
	}
	if c.Runtime.RetryCount < 1 {
		return fmt.Errorf("RETRY_COUNT must be at least 1")
	}
	if c.Storage.CacheDir == "" {
		return fmt.Errorf("CACHE_DIR is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment variables with default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvLanguage gets a BCP 47 language tag from environment variables with default
func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}
