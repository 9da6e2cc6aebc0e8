package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

const (
	// MaxMessages is how many raw messages a report keeps.
	MaxMessages = 100

	timestampLayout = "2006-01-02_15-04-05"
	filePrefix      = "log_summary_"
	maxSuffix       = 10000
)

// Writer persists a report and returns where it went.
type Writer interface {
	Write(ctx context.Context, report *model.Report) (string, error)
}

type markdownWriter struct {
	dir string
}

func NewMarkdownWriter(cfg *config.Config) Writer {
	return &markdownWriter{dir: cfg.ReportDir}
}

// Write creates <dir>/log_summary_<timestamp>.md. Files are created exclusively, so a second
// report within the same second gets a _1, _2, ... suffix instead of replacing the first.
func (w *markdownWriter) Write(ctx context.Context, report *model.Report) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", w.dir, err)
	}

	timestamp := report.CreatedAt.Format(timestampLayout)
	file, path, err := w.create(timestamp)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.WriteString(Render(report, timestamp)); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close report %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Summary saved")
	return path, nil
}

func (w *markdownWriter) create(timestamp string) (*os.File, string, error) {
	for n := 0; n < maxSuffix; n++ {
		name := filePrefix + timestamp
		if n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		path := filepath.Join(w.dir, name+".md")

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create report file %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free report file name for timestamp %s", timestamp)
}

// Render produces the markdown body of a report.
func Render(report *model.Report, timestamp string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Log Summary Report — %s\n\n", timestamp)
	b.WriteString("## 🔍 Summary\n\n")
	b.WriteString(report.Summary + "\n\n")
	fmt.Fprintf(&b, "## 📜 Raw Log Messages (last %d)\n\n", MaxMessages)
	for _, msg := range LastMessages(report.Messages) {
		fmt.Fprintf(&b, "- %s\n", msg)
	}
	return b.String()
}

// LastMessages returns at most the last MaxMessages entries.
func LastMessages(messages []string) []string {
	if len(messages) > MaxMessages {
		return messages[len(messages)-MaxMessages:]
	}
	return messages
}

// ReportInfo describes a report file on disk.
type ReportInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// List returns the markdown reports in dir, newest first.
func List(dir string) ([]ReportInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ReportInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	reports := make([]ReportInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to stat report file")
			continue
		}
		reports = append(reports, ReportInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		ti, ni := sortKey(reports[i].Name)
		tj, nj := sortKey(reports[j].Name)
		if ti != tj {
			return ti > tj
		}
		return ni > nj
	})
	return reports, nil
}

// sortKey splits a report file name into its timestamp and collision suffix, so that _10
// orders after _2.
func sortKey(name string) (string, int) {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".md")
	n := len(timestampLayout)
	if len(stem) > n+1 && stem[n] == '_' {
		if suffix, err := strconv.Atoi(stem[n+1:]); err == nil {
			return stem[:n], suffix
		}
	}
	return stem, 0
}
