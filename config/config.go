package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is reported by --version.
const Version = "1.0.0"

const (
	SourceJournal   = "journal"
	SourceFile      = "file"
	SourceContainer = "container"
)

type Config struct {
	Source          string
	Entries         int
	Priority        string
	LogFilePath     string
	DockerContainer string
	DockerHost      string
	Model           string
	OllamaHost      string
	Timeout         time.Duration
	Prompt          string
	Follow          bool
	Interval        time.Duration
	FollowSchedule  string
	ReportDir       string
	LogLevel        string
	LogFormat       string
	ShowVersion     bool

	Server        ServerConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	TimescaleDB   TimescaleDBConfig
}

type ServerConfig struct {
	Addr string // empty disables the status API
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ElasticsearchConfig struct {
	Addresses []string
	Index     string
}

type TimescaleDBConfig struct {
	DSN string
}

// flag name -> config key
var flagKeys = map[string]string{
	"source":      "source",
	"logfile":     "log_file_path",
	"entries":     "entries",
	"priority":    "priority",
	"model":       "model",
	"container":   "docker_container",
	"ollama-host": "ollama_host",
	"timeout":     "timeout",
	"follow":      "follow",
	"interval":    "interval",
	"schedule":    "follow_schedule",
	"report-dir":  "report_dir",
	"listen":      "server.addr",
	"log-level":   "log_level",
}

// Load resolves the configuration from command-line arguments, LOGWHISPERER_* environment
// variables, the YAML config file and built-in defaults, in that order of precedence.
// A missing config file is not an error.
func Load(args []string, stderr io.Writer) (*Config, error) {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LOGWHISPERER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	configFile, _ := fs.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	var config Config
	config.Source = NormalizeSource(v.GetString("source"))
	config.Entries = v.GetInt("entries")
	config.Priority = v.GetString("priority")
	config.LogFilePath = v.GetString("log_file_path")
	config.DockerContainer = v.GetString("docker_container")
	config.DockerHost = v.GetString("docker_host")
	config.Model = v.GetString("model")
	config.OllamaHost = strings.TrimRight(v.GetString("ollama_host"), "/")
	config.Timeout = time.Duration(v.GetInt("timeout")) * time.Second
	config.Prompt = v.GetString("prompt")
	config.Follow = v.GetBool("follow")
	config.Interval = time.Duration(v.GetInt("interval")) * time.Second
	config.FollowSchedule = v.GetString("follow_schedule")
	config.ReportDir = v.GetString("report_dir")
	config.LogLevel = v.GetString("log_level")
	config.LogFormat = v.GetString("log_format")
	config.ShowVersion, _ = fs.GetBool("version")

	config.Server.Addr = v.GetString("server.addr")

	// --- Sinks ---
	config.Kafka.Brokers = stringList(v, "kafka.brokers")
	config.Kafka.Topic = v.GetString("kafka.topic")
	config.Elasticsearch.Addresses = stringList(v, "elasticsearch.addresses")
	config.Elasticsearch.Index = v.GetString("elasticsearch.index")
	config.TimescaleDB.DSN = v.GetString("timescaledb.dsn")

	if config.Entries <= 0 {
		return nil, fmt.Errorf("entries must be positive, got %d", config.Entries)
	}
	if config.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	if config.Follow && config.Interval <= 0 && config.FollowSchedule == "" {
		return nil, fmt.Errorf("interval must be positive, got %s", config.Interval)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", SourceJournal)
	v.SetDefault("entries", 500)
	v.SetDefault("priority", "err")
	v.SetDefault("log_file_path", "/var/log/syslog")
	v.SetDefault("model", "mistral")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("timeout", 60)
	v.SetDefault("interval", 60)
	v.SetDefault("report_dir", "reports")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("kafka.topic", "log_summaries")
	v.SetDefault("elasticsearch.index", "log-summaries")
}

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("logwhisperer", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("source", "", "Log source (journal|file|container)")
	fs.String("logfile", "", "Path to log file (if source is 'file')")
	fs.Int("entries", 0, "Number of log entries to analyze")
	fs.String("priority", "", "Journal priority (e.g., err, warning)")
	fs.String("model", "", "LLM model name for summarization (default: mistral)")
	fs.String("container", "", "Container name or ID (if source is 'container')")
	fs.String("ollama-host", "", "Override Ollama server address")
	fs.Int("timeout", 0, "Request timeout in seconds")
	fs.Bool("version", false, "Show the current version")
	fs.Bool("follow", false, "Continuously summarize logs at intervals")
	fs.Int("interval", 0, "Interval in seconds between summaries (used with --follow)")
	fs.String("schedule", "", "Cron expression triggering summaries instead of --interval (used with --follow)")
	fs.String("report-dir", "", "Directory for markdown reports")
	fs.String("listen", "", "Address for the status API in follow mode (e.g. :8080)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("config", "", "Path to config file (default: ./config.yaml)")
	return fs
}

// NormalizeSource maps accepted aliases to canonical source kinds. Unknown values are
// returned lower-cased so that they fail later with a clear error.
func NormalizeSource(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "journalctl", "journald":
		return SourceJournal
	case "docker":
		return SourceContainer
	}
	return s
}

// stringList accepts both a YAML sequence and a comma-separated string (as set from the environment).
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return splitList(s)
	}
	return splitList(strings.Join(v.GetStringSlice(key), ","))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
