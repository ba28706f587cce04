package media

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MimeLyc/lang-repetitor/pkg/file"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

type ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
	filePath   string
	fileDir    string
	fileName   string
}

func NewFfmpeg(
	audioPath string,
) ffmpeg {
	// deal with audio path
	audioPath = filepath.Clean(audioPath)
	audioDir := filepath.Dir(audioPath)
	audioName := filepath.Base(audioPath)

	return ffmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		filePath:   audioPath,
		fileDir:    audioDir,
		fileName:   audioName,
	}
}

// MuxVideo renders a static video track against the audio timeline and
// attaches the subtitle track, writing the result to targetPath.
func (ff ffmpeg) MuxVideo(
	subtitlePath string,
	targetPath string,
) (string, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", err
	}
	cmd := exec.Command(cmdPath, ff.muxArgs(subtitlePath, targetPath)...)

	if output, err := cmd.CombinedOutput(); err != nil {
		log.Error("Failed to run ffmpeg: %v: %s", err, output)
		return "", err
	}
	return targetPath, nil
}

// DefMuxVideo muxes next to the audio file with an mp4 extension.
func (ff ffmpeg) DefMuxVideo(subtitlePath string) (string, error) {
	return ff.MuxVideo(
		subtitlePath,
		filepath.Join(ff.fileDir, file.ReplaceExt(ff.fileName, ".mp4")))
}

// ReadDuration probes the audio duration as a cross-check against the
// renderer's computed timeline length.
func (ff ffmpeg) ReadDuration() (time.Duration, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return 0, err
	}
	cmd := exec.Command(cmdPath, ff.readProbeArgs(ff.filePath)...)

	output, err := cmd.Output()
	if err != nil {
		log.Error("Failed to run ffprobe: %v", err)
		return 0, err
	}

	var probeResult struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal(output, &probeResult); err != nil {
		log.Error("Failed to parse ffprobe output: %v", err)
		return 0, err
	}

	seconds, err := strconv.ParseFloat(probeResult.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe duration %q: %w", probeResult.Format.Duration, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (ffmpeg) readProbeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
}

func (f ffmpeg) muxArgs(subtitlePath, targetPath string) []string {
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", "color=c=black:s=1280x720:r=25", // static visual track
		"-i", f.filePath,
		"-i", subtitlePath,
		"-map", "0:v",
		"-map", "1:a",
		"-map", "2:s",
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-c:s", "mov_text",
		"-shortest",
		targetPath,
	}
}
