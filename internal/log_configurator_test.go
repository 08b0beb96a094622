package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogConfigurationFollowsConfig(t *testing.T) {
	dir := t.TempDir()

	config := DefaultConfig
	config.ReportLog = filepath.Join(dir, "report.log")

	box := NewVersionedBox(&config)
	lc := NewLogConfiguration(box.GetHandle())
	defer lc.Close()

	lc.Update()
	lc.ReportLogger.Print("run 1: 10 passed, 0 failed")

	data, err := os.ReadFile(config.ReportLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run 1: 10 passed")

	// Switching to another file leaves the first one alone
	next := config
	next.ReportLog = filepath.Join(dir, "report2.log")
	require.True(t, box.UpdateValue(&next))

	lc.Update()
	lc.ReportLogger.Print("run 2")

	data, err = os.ReadFile(next.ReportLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run 2")

	data, err = os.ReadFile(config.ReportLog)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "run 2")

	// Back to stdout
	stdout := next
	stdout.ReportLog = ""
	require.True(t, box.UpdateValue(&stdout))

	lc.Update()
	assert.Nil(t, lc.reportLog.file)
}

func TestLogConfigurationBadPath(t *testing.T) {
	config := DefaultConfig
	config.ReportLog = filepath.Join(t.TempDir(), "missing", "report.log")

	lc := NewLogConfiguration(NewVersionedBox(&config).GetHandle())
	defer lc.Close()

	lc.Update()
	assert.Nil(t, lc.reportLog.file)
}
