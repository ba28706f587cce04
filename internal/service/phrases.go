package service

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/MimeLyc/lang-repetitor/internal/aligner"
)

// ParsePhraseFile reads an authored phrase list. One phrase per line in
// document order:
//
//	Guten Morgen|Good morning
//	Wie geht es dir
//
// The part after the first pipe is the authored translation and may be
// omitted. Blank lines and lines starting with '#' are skipped.
func ParsePhraseFile(path string) ([]aligner.Phrase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phrase file: %w", err)
	}
	defer f.Close()

	phrases := make([]aligner.Phrase, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		text := line
		translation := ""
		if i := strings.Index(line, "|"); i >= 0 {
			text = strings.TrimSpace(line[:i])
			translation = strings.TrimSpace(line[i+1:])
		}
		if text == "" {
			continue
		}

		phrases = append(phrases, aligner.Phrase{
			Text:        text,
			Translation: translation,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read phrase file: %w", err)
	}
	if len(phrases) == 0 {
		return nil, fmt.Errorf("phrase file %s holds no phrases", path)
	}
	return phrases, nil
}
