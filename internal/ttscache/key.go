package ttscache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/MimeLyc/lang-repetitor/internal/capability"
)

// Key derives the deterministic content address of a synthesis request.
// Text is normalized (trimmed, inner whitespace collapsed) so that
// formatting differences do not fragment the cache. Language, voice name
// and speed are part of the identity: changing any of them changes the
// produced audio, so it must change the key.
func Key(text string, voice capability.Voice) string {
	h := sha256.New()
	h.Write([]byte(NormalizeText(text)))
	h.Write([]byte{0})
	h.Write([]byte(voice.Language.String()))
	h.Write([]byte{0})
	h.Write([]byte(voice.Name))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", voice.SpeedPercent)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeText prepares authored text for synthesis: markup tags and
// control characters are dropped, runs of whitespace collapse to single
// spaces. Formatting differences must not fragment the cache.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case inTag:
		case r < ' ' && r != '\t' && r != '\n':
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// sanitizePathPart makes a key component usable as a directory name.
func sanitizePathPart(part string) string {
	replacer := strings.NewReplacer("-", "_", ":", "_", "/", "_", " ", "_")
	return replacer.Replace(part)
}
