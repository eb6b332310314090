package barlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelWarn, &buf)

	l.Infof("ignored %d", 1)
	l.Warnf("kept %d", 2)
	l.Errorf("kept %d", 3)

	out := buf.String()
	assert.False(t, strings.Contains(out, "ignored"))
	assert.True(t, strings.Contains(out, "kept 2"))
	assert.True(t, strings.Contains(out, "kept 3"))
	assert.True(t, strings.Contains(out, "[WARN]"))
	assert.True(t, strings.Contains(out, "[ERROR]"))
}
