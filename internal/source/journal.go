package source

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fastjson"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

// CommandRunner runs an external command and returns its stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type journalSource struct {
	priority string
	entries  int
	run      CommandRunner
	parser   fastjson.Parser
}

// NewJournalSource queries journalctl. A nil runner executes the real binary.
func NewJournalSource(priority string, entries int, run CommandRunner) Source {
	if run == nil {
		run = execRunner
	}
	return &journalSource{priority: priority, entries: entries, run: run}
}

func (s *journalSource) Kind() string { return config.SourceJournal }

func (s *journalSource) Read(ctx context.Context) []model.LogRecord {
	args := []string{"-p", s.priority, "-n", strconv.Itoa(s.entries), "--output", "json", "--no-pager"}
	stdout, stderr, err := s.run(ctx, "journalctl", args...)
	if err != nil {
		log.Error().Err(err).Str("stderr", strings.TrimSpace(string(stderr))).Msg("Error reading from journalctl")
		return nil
	}

	var records []model.LogRecord
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entry, err := s.parseEntry(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("Skipping unparseable journal line")
			continue
		}
		records = append(records, model.JournalRecord{Entry: entry})
	}
	log.Debug().Int("records", len(records)).Msg("Read journal entries")
	return records
}

// parseEntry flattens one JSON journal entry into strings. journalctl emits non-UTF-8 field
// values as arrays of byte values and multi-valued fields as arrays of strings.
func (s *journalSource) parseEntry(line string) (map[string]string, error) {
	v, err := s.parser.Parse(line)
	if err != nil {
		return nil, err
	}
	obj, err := v.Object()
	if err != nil {
		return nil, err
	}

	entry := make(map[string]string, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if str, ok := journalValue(val); ok {
			entry[string(key)] = str
		}
	})
	return entry, nil
}

func journalValue(val *fastjson.Value) (string, bool) {
	switch val.Type() {
	case fastjson.TypeString:
		return string(val.GetStringBytes()), true
	case fastjson.TypeNumber:
		return val.String(), true
	case fastjson.TypeTrue, fastjson.TypeFalse:
		return val.String(), true
	case fastjson.TypeArray:
		items := val.GetArray()
		if len(items) == 0 {
			return "", true
		}
		if items[0].Type() == fastjson.TypeNumber {
			buf := make([]byte, 0, len(items))
			for _, item := range items {
				buf = append(buf, byte(item.GetUint()))
			}
			return string(buf), true
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if str, ok := journalValue(item); ok {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, "\n"), true
	}
	return "", false
}
