package state_managers

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/rs/zerolog"
)

// CommandJournal persists the last command outcome of each device to a file
type CommandJournal struct {
	filePath string
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewCommandJournal initializes a new CommandJournal
func NewCommandJournal(filePath string, logger zerolog.Logger) *CommandJournal {
	return &CommandJournal{
		filePath: filePath,
		logger:   logger,
	}
}

// LoadState reads the journal, keyed by device id
func (j *CommandJournal) LoadState() (map[string]models.CommandOutcome, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.load()
}

func (j *CommandJournal) load() (map[string]models.CommandOutcome, error) {
	data, err := os.ReadFile(j.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]models.CommandOutcome), nil
		}
		j.logger.Error().Err(err).Msg("Failed to read journal file")
		return nil, err
	}

	var outcomes map[string]models.CommandOutcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		j.logger.Error().Err(err).Msg("Failed to unmarshal journal file")
		return nil, err
	}
	if outcomes == nil {
		outcomes = make(map[string]models.CommandOutcome)
	}
	return outcomes, nil
}

func (j *CommandJournal) save(outcomes map[string]models.CommandOutcome) error {
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		j.logger.Error().Err(err).Msg("Failed to marshal journal")
		return err
	}

	if err := os.WriteFile(j.filePath, data, 0644); err != nil {
		j.logger.Error().Err(err).Msg("Failed to write journal file")
		return err
	}
	return nil
}

// Record replaces the stored outcome for the outcome's device
func (j *CommandJournal) Record(outcome models.CommandOutcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	outcomes, err := j.load()
	if err != nil {
		return err
	}
	outcomes[outcome.DeviceID] = outcome
	return j.save(outcomes)
}

// Last returns the stored outcome for deviceID
func (j *CommandJournal) Last(deviceID string) (models.CommandOutcome, bool, error) {
	outcomes, err := j.LoadState()
	if err != nil {
		return models.CommandOutcome{}, false, err
	}
	outcome, ok := outcomes[deviceID]
	return outcome, ok, nil
}
