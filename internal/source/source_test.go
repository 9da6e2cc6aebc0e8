package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		kind    string
		wantErr error
	}{
		{"journal", config.Config{Source: config.SourceJournal, Entries: 10, Priority: "err"}, config.SourceJournal, nil},
		{"file", config.Config{Source: config.SourceFile, Entries: 10, LogFilePath: "/tmp/x.log"}, config.SourceFile, nil},
		{"container", config.Config{Source: config.SourceContainer, Entries: 10, DockerContainer: "web", DockerHost: "tcp://127.0.0.1:2375"}, config.SourceContainer, nil},
		{"container without name", config.Config{Source: config.SourceContainer, Entries: 10}, "", ErrMissingContainer},
		{"unknown", config.Config{Source: "syslog", Entries: 10}, "", ErrInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := New(&tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, src)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, src.Kind())
		})
	}
}

func TestFilterMessages(t *testing.T) {
	records := []model.LogRecord{
		model.JournalRecord{Entry: map[string]string{"MESSAGE": "first"}},
		model.JournalRecord{Entry: map[string]string{"PRIORITY": "3"}},
		model.FileRecord{Line: "second"},
		model.JournalRecord{Entry: map[string]string{"MESSAGE": ""}},
		model.ContainerRecord{Line: "third"},
	}

	messages := FilterMessages(records)

	assert.Equal(t, []string{"first", "second", "", "third"}, messages)
	assert.LessOrEqual(t, len(messages), len(records))
}

func TestFilterMessages_Empty(t *testing.T) {
	assert.Empty(t, FilterMessages(nil))
	assert.Empty(t, FilterMessages([]model.LogRecord{model.JournalRecord{Entry: map[string]string{}}}))
}
