package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

type JobPayload struct {
	PhraseFile string `json:"phrase_file"`
	OutputBase string `json:"output_base"`
}

// JobResult holds the output asset locations of a finished compile.
type JobResult struct {
	AudioTrack   string `json:"audio_track,omitempty"`
	SubtitleFile string `json:"subtitle_file,omitempty"`
	VideoTrack   string `json:"video_track,omitempty"`
	FailedUnits  int    `json:"failed_units,omitempty"`
}

type CompileJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Result    JobResult  `json:"result"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
