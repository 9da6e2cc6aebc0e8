package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

const maxLineSize = 1024 * 1024

type fileSource struct {
	path    string
	entries int
	now     func() time.Time
}

// NewFileSource tails a plain-text log file. Rotated files ending in .gz or .zst are
// decompressed on the fly.
func NewFileSource(path string, entries int) Source {
	return &fileSource{path: path, entries: entries, now: time.Now}
}

func (s *fileSource) Kind() string { return config.SourceFile }

func (s *fileSource) Read(ctx context.Context) []model.LogRecord {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", s.path).Msg("Log file does not exist")
		} else {
			log.Error().Err(err).Str("file", s.path).Msg("Failed to stat log file")
		}
		return nil
	}

	lines, err := s.tail(ctx)
	if err != nil {
		log.Error().Err(err).Str("file", s.path).Msg("Failed to read log file")
		return nil
	}

	readAt := s.now()
	records := make([]model.LogRecord, 0, len(lines))
	for _, line := range lines {
		records = append(records, model.FileRecord{ReadAt: readAt, Line: strings.TrimSpace(line)})
	}
	log.Debug().Str("file", s.path).Int("records", len(records)).Msg("Read log file")
	return records
}

// tail returns the last s.entries lines in file order using a ring buffer, so memory stays
// bounded by the window rather than the file size.
func (s *fileSource) tail(ctx context.Context) ([]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r, closeReader, err := decompress(file, s.path)
	if err != nil {
		return nil, err
	}
	defer closeReader()

	ring := make([]string, s.entries)
	var count int

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if count%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ring[count%s.entries] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", s.path, err)
	}

	if count <= s.entries {
		return ring[:count], nil
	}
	start := count % s.entries
	return append(ring[start:], ring[:start]...), nil
}

func decompress(f *os.File, path string) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return f, func() {}, nil
	}
}
