package state_managers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandJournal_MissingFileIsEmpty(t *testing.T) {
	journal := NewCommandJournal(filepath.Join(t.TempDir(), "journal.json"), zerolog.Nop())

	outcomes, err := journal.LoadState()

	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestCommandJournal_RecordKeepsLatestPerDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	journal := NewCommandJournal(path, zerolog.Nop())
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, journal.Record(models.CommandOutcome{DeviceID: "cam-1", Command: models.CommandSaveFile, Result: "Device did not respond", SentAt: sentAt}))
	require.NoError(t, journal.Record(models.CommandOutcome{DeviceID: "cam-2", Command: models.CommandStatusRequest, Responded: true, SentAt: sentAt}))
	require.NoError(t, journal.Record(models.CommandOutcome{DeviceID: "cam-1", Command: models.CommandStreamingStart, Responded: true, SentAt: sentAt}))

	reopened := NewCommandJournal(path, zerolog.Nop())
	last, ok, err := reopened.Last("cam-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.CommandStreamingStart, last.Command)
	assert.True(t, last.Responded)
	assert.True(t, sentAt.Equal(last.SentAt))

	outcomes, err := reopened.LoadState()
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)

	_, ok, err = reopened.Last("cam-9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommandJournal_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	journal := NewCommandJournal(path, zerolog.Nop())

	_, err := journal.LoadState()
	assert.Error(t, err)

	err = journal.Record(models.CommandOutcome{DeviceID: "cam-1"})
	assert.Error(t, err)
}
