package source

import (
	"context"
	"errors"
	"fmt"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

var (
	ErrInvalidSource    = errors.New("invalid source: must be 'journal', 'file' or 'container'")
	ErrMissingContainer = errors.New("container name must be provided via --container or config.yaml")
)

// Source reads the most recent entries of one log source. Read never fails: problems are
// logged and yield an empty slice so that the cycle can go on.
type Source interface {
	Read(ctx context.Context) []model.LogRecord
	Kind() string
}

// New builds the source selected by cfg. The Docker client is only created for the container
// source.
func New(cfg *config.Config) (Source, error) {
	switch cfg.Source {
	case config.SourceJournal:
		return NewJournalSource(cfg.Priority, cfg.Entries, nil), nil
	case config.SourceFile:
		return NewFileSource(cfg.LogFilePath, cfg.Entries), nil
	case config.SourceContainer:
		if cfg.DockerContainer == "" {
			return nil, ErrMissingContainer
		}
		api, err := NewDockerAPI(cfg.DockerHost)
		if err != nil {
			return nil, fmt.Errorf("failed to create docker client: %w", err)
		}
		return NewContainerSource(api, cfg.DockerContainer, cfg.Entries), nil
	default:
		return nil, fmt.Errorf("%w (got %q)", ErrInvalidSource, cfg.Source)
	}
}

// FilterMessages keeps the message of every record that has one, in order.
func FilterMessages(records []model.LogRecord) []string {
	messages := make([]string, 0, len(records))
	for _, rec := range records {
		if msg, ok := rec.Message(); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}
