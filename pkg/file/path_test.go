package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "dir/lesson.mp4", ReplaceExt("dir/lesson.wav", ".mp4"))
	assert.Equal(t, "dir/lesson.mp4", ReplaceExt("dir/lesson.wav", "mp4"))
	assert.Equal(t, "dir/lesson.mp4", ReplaceExt("dir/lesson", "mp4"))
	assert.Equal(t, "", ReplaceExt("", ".mp4"))
}

func TestBaseNoExt(t *testing.T) {
	assert.Equal(t, "lesson", BaseNoExt("/library/lesson.txt"))
	assert.Equal(t, "lesson", BaseNoExt("lesson"))
	assert.Equal(t, ".env", BaseNoExt("/root/.env"))
}
