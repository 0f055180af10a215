package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDStable(t *testing.T) {
	assert.Equal(t, SessionID(), SessionID())
	assert.NotEmpty(t, SessionID())
}

func TestLoggerWritesLeveledEntries(t *testing.T) {
	dir := t.TempDir()
	SetDirectory(dir)
	t.Cleanup(func() {
		// Reset the shared sink so other tests re-initialize.
		mu.Lock()
		sink = nil
		sinkErr = nil
		logDir = ""
		mu.Unlock()
	})

	log, err := NewLogger("scheduler")
	require.NoError(t, err)

	log.Infof("update %d applied", 3)
	log.Warnf("judge index out of range")

	data, err := os.ReadFile(filepath.Join(dir, SessionID()+".log"))
	require.NoError(t, err)

	content := string(data)
	assert.True(t, strings.Contains(content, "[scheduler] [INFO] update 3 applied"))
	assert.True(t, strings.Contains(content, "[scheduler] [WARN] judge index out of range"))
}
