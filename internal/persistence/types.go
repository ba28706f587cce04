package persistence

import "time"

// AssetRecord is the durable trace of one compiled asset. The service uses
// it to skip sources that were already compiled, across restarts and
// queue pruning.
type AssetRecord struct {
	DedupeKey    string
	Source       string
	AudioTrack   string
	SubtitleFile string
	VideoTrack   string
	Duration     time.Duration
	FailedUnits  int
	CreatedAt    time.Time
}
