package subtitle

import "time"

// Writer is the interface for writing subtitle tracks
type Writer interface {
	Write(path string, track *Track) error
}

// Line represents a single subtitle line
type Line struct {
	Index     int           // subtitle index
	StartTime time.Duration // start time
	EndTime   time.Duration // end time
	Text      string        // subtitle text
}

// Track represents one subtitle track
type Track struct {
	Lines  []Line
	Format string // e.g. SRT
}
