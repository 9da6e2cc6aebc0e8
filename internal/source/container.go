package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog/log"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

// DockerAPI is the subset of the Docker Engine client used to tail container logs.
type DockerAPI interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
}

// NewDockerAPI connects to host, or to the environment's DOCKER_HOST when host is empty.
// No request is made until the first read.
func NewDockerAPI(host string) (*client.Client, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	return client.NewClientWithOpts(opts...)
}

type containerSource struct {
	api       DockerAPI
	container string
	entries   int
}

func NewContainerSource(api DockerAPI, containerName string, entries int) Source {
	return &containerSource{api: api, container: containerName, entries: entries}
}

func (s *containerSource) Kind() string { return config.SourceContainer }

func (s *containerSource) Read(ctx context.Context) []model.LogRecord {
	lines, err := s.tail(ctx)
	if err != nil {
		log.Error().Err(err).Str("container", s.container).Msg("Error reading container logs")
		return nil
	}

	records := make([]model.LogRecord, 0, len(lines))
	for _, line := range lines {
		records = append(records, model.ContainerRecord{Container: s.container, Line: line})
	}
	log.Debug().Str("container", s.container).Int("records", len(records)).Msg("Read container logs")
	return records
}

func (s *containerSource) tail(ctx context.Context) ([]string, error) {
	info, err := s.api.ContainerInspect(ctx, s.container)
	if err != nil {
		return nil, fmt.Errorf("inspect failed: %w", err)
	}
	tty := info.Config != nil && info.Config.Tty

	reader, err := s.api.ContainerLogs(ctx, s.container, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(s.entries),
	})
	if err != nil {
		return nil, fmt.Errorf("logs request failed: %w", err)
	}
	defer reader.Close()

	// Without a TTY both streams arrive multiplexed with 8-byte frame headers. Writing
	// both into one buffer keeps the original interleaving.
	var buf bytes.Buffer
	if tty {
		_, err = io.Copy(&buf, reader)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, reader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log stream: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(&buf)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
