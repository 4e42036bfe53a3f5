package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFileDevice(t *testing.T) {
	assert.True(t, isFileDevice("file:/var/spool/printd/out"))
	assert.False(t, isFileDevice("socket://printer.local:9100"))
	assert.False(t, isFileDevice(""))
}

func TestOpenDeviceFileCreatesOrdinaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ps")

	f, err := openDeviceFile("file:" + path)
	require.NoError(t, err)
	defer f.Close()

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestOpenDeviceFileRefusesToCreateMissingDevNode(t *testing.T) {
	_, err := openDeviceFile("file:/dev/printd-test-nonexistent")
	assert.Error(t, err, "device nodes under /dev must pre-exist")
}

// NewExecutor's WorkCh is the only channel a watch goroutine may use to
// hand job completion back to the single cooperative scheduler
// goroutine; it must be ready to receive without anyone wiring it up
// first.
func TestNewExecutorWorkChIsBuffered(t *testing.T) {
	e := NewExecutor(Credentials{}, nil)
	require.NotNil(t, e.WorkCh)

	done := make(chan struct{})
	e.WorkCh <- func() { close(done) }

	w := <-e.WorkCh
	w()
	<-done
}
