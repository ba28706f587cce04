package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// DefaultWriter is the default subtitle track writer
type DefaultWriter struct{}

// NewWriter creates a new subtitle track writer
func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write writes the subtitle track to specified path in SRT format
func (w *DefaultWriter) Write(path string, track *Track) error {
	if track == nil {
		return fmt.Errorf("subtitle track is empty")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	for _, line := range track.Lines {
		// write index
		fmt.Fprintf(writer, "%d\n", line.Index)

		// write time
		startTime := FormatDuration(line.StartTime)
		endTime := FormatDuration(line.EndTime)
		fmt.Fprintf(writer, "%s --> %s\n", startTime, endTime)

		// write text
		fmt.Fprintf(writer, "%s\n\n", line.Text)
	}

	return nil
}

// FormatDuration formats time.Duration to SRT time format
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
