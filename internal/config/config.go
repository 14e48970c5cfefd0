// Package config provides the configuration structure for the tts-worker.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Queue backends.
const (
	QueueBackendSQS  = "sqs"
	QueueBackendNATS = "nats"
)

// Synthesis backends.
const (
	TTSBackendOpenAI = "openai"
	TTSBackendHTTP   = "http"
)

// Aligner backends.
const (
	AlignerBackendAeneas  = "aeneas"
	AlignerBackendWhisper = "whisper"
	AlignerBackendNone    = "none"
)

// Defaults.
const (
	defaultRegion              = "us-east-1"
	defaultVoice               = "af_heart"
	defaultWaitSeconds         = 20
	defaultVisibilitySeconds   = 300
	defaultTTSModel            = "kokoro"
	defaultTTSLanguage         = "en"
	defaultTTSBaseURL          = "http://127.0.0.1:8880/v1"
	defaultSampleRate          = 24000
	defaultTTSTimeoutSeconds   = 120
	defaultAlignerLanguage     = "eng"
	defaultAlignerTimeout      = 120
	defaultWhisperModel        = "whisper-1"
	defaultErrorBackoffSeconds = 1
	defaultHealthAddr          = ":8080"
	defaultStreamName          = "TTS_JOBS"
	defaultConsumerName        = "tts-workers"
	defaultJobSubject          = "tts.jobs"
)

// Environment variables that override file configuration.
const (
	envQueueURL       = "QUEUE_URL"
	envRegion         = "AWS_REGION"
	envAWSEndpoint    = "AWS_ENDPOINT_URL"
	envVoice          = "KOKORO_VOICE"
	envTTSBaseURL     = "TTS_BASE_URL"
	envTTSAPIKey      = "TTS_API_KEY"
	envNATSURL        = "NATS_URL"
	envHealthAddr     = "HEALTH_ADDR"
	envLogDir         = "LOG_DIR"
	envMaxAttempts    = "MAX_ATTEMPTS"
	envAlignerBackend = "ALIGNER_BACKEND"
)

var (
	// ErrUnknownQueueBackend indicates an unsupported queue.backend value.
	ErrUnknownQueueBackend = errors.New("unknown queue backend")
	// ErrUnknownTTSBackend indicates an unsupported tts_service.backend value.
	ErrUnknownTTSBackend = errors.New("unknown tts backend")
	// ErrUnknownAlignerBackend indicates an unsupported aligner.backend value.
	ErrUnknownAlignerBackend = errors.New("unknown aligner backend")
	// ErrQueueURLRequired indicates the SQS backend has no queue URL.
	ErrQueueURLRequired = errors.New("queue url is required for the sqs backend")
	// ErrNATSURLRequired indicates a NATS feature is enabled without a NATS URL.
	ErrNATSURLRequired = errors.New("nats url is required")
	// ErrNonPositive indicates a duration or count that must be positive.
	ErrNonPositive = errors.New("value must be positive")
)

// QueueConfig selects and tunes the job queue.
type QueueConfig struct {
	Backend                  string `toml:"backend"`
	URL                      string `toml:"url"`
	WaitSeconds              int    `toml:"wait_seconds"`
	VisibilityTimeoutSeconds int    `toml:"visibility_timeout_seconds"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL              string `toml:"url"`
	StreamName       string `toml:"stream_name"`
	ConsumerName     string `toml:"consumer_name"`
	JobSubject       string `toml:"job_subject"`
	CompletedSubject string `toml:"completed_subject"`
}

// AWSConfig holds the AWS client settings.
type AWSConfig struct {
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// TTSServiceConfig holds the synthesis backend settings.
type TTSServiceConfig struct {
	Backend        string `toml:"backend"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	DefaultVoice   string `toml:"default_voice"`
	Language       string `toml:"language"`
	SampleRate     int    `toml:"sample_rate"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AlignerConfig holds the forced-alignment settings.
type AlignerConfig struct {
	Backend        string   `toml:"backend"`
	Command        []string `toml:"command"`
	Language       string   `toml:"language"`
	WhisperModel   string   `toml:"whisper_model"`
	WhisperBaseURL string   `toml:"whisper_base_url"`
	WhisperAPIKey  string   `toml:"whisper_api_key"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// WorkerConfig tunes the polling loop.
type WorkerConfig struct {
	// JobTimeoutSeconds bounds one job; 0 means the visibility timeout.
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`
	// MaxAttempts drops messages delivered more often than this; 0 disables.
	MaxAttempts         int `toml:"max_attempts"`
	ErrorBackoffSeconds int `toml:"error_backoff_seconds"`
}

// HealthConfig holds the liveness server settings.
type HealthConfig struct {
	Addr string `toml:"addr"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	TempDir     string `toml:"temp_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Queue   QueueConfig      `toml:"queue"`
	NATS    NATSConfig       `toml:"nats"`
	AWS     AWSConfig        `toml:"aws"`
	TTS     TTSServiceConfig `toml:"tts_service"`
	Aligner AlignerConfig    `toml:"aligner"`
	Worker  WorkerConfig     `toml:"worker"`
	Health  HealthConfig     `toml:"health"`
	Paths   PathsConfig      `toml:"paths"`
}

// Load loads the configuration through the central configurator, then
// applies defaults and environment overrides.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from an explicit TOML file, then applies
// defaults and environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return finish(&cfg)
}

// FromEnv builds a configuration from defaults and the environment alone.
func FromEnv() (*Config, error) {
	var cfg Config

	return finish(&cfg)
}

// LoadDotEnv loads a .env file into the process environment when present.
// Variables that are already set are not overwritten.
func LoadDotEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if value, ok := lookup(envQueueURL); ok && value != "" {
		c.Queue.URL = value
		c.Queue.Backend = QueueBackendSQS
	}

	overrides := []struct {
		name   string
		target *string
	}{
		{envRegion, &c.AWS.Region},
		{envAWSEndpoint, &c.AWS.Endpoint},
		{envVoice, &c.TTS.DefaultVoice},
		{envTTSBaseURL, &c.TTS.BaseURL},
		{envTTSAPIKey, &c.TTS.APIKey},
		{envNATSURL, &c.NATS.URL},
		{envHealthAddr, &c.Health.Addr},
		{envLogDir, &c.Paths.BaseLogsDir},
		{envAlignerBackend, &c.Aligner.Backend},
	}

	for _, override := range overrides {
		if value, ok := lookup(override.name); ok && value != "" {
			*override.target = value
		}
	}

	if value, ok := lookup(envMaxAttempts); ok {
		attempts, err := strconv.Atoi(value)
		if err == nil {
			c.Worker.MaxAttempts = attempts
		}
	}
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueBackendSQS
		if c.Queue.URL == "" && c.NATS.URL != "" {
			c.Queue.Backend = QueueBackendNATS
		}
	}

	setInt(&c.Queue.WaitSeconds, defaultWaitSeconds)
	setInt(&c.Queue.VisibilityTimeoutSeconds, defaultVisibilitySeconds)

	setString(&c.NATS.StreamName, defaultStreamName)
	setString(&c.NATS.ConsumerName, defaultConsumerName)
	setString(&c.NATS.JobSubject, defaultJobSubject)

	setString(&c.AWS.Region, defaultRegion)

	setString(&c.TTS.Backend, TTSBackendOpenAI)
	setString(&c.TTS.BaseURL, defaultTTSBaseURL)
	setString(&c.TTS.Model, defaultTTSModel)
	setString(&c.TTS.DefaultVoice, defaultVoice)
	setString(&c.TTS.Language, defaultTTSLanguage)
	setInt(&c.TTS.SampleRate, defaultSampleRate)
	setInt(&c.TTS.TimeoutSeconds, defaultTTSTimeoutSeconds)

	setString(&c.Aligner.Backend, AlignerBackendAeneas)
	setString(&c.Aligner.Language, defaultAlignerLanguage)
	setString(&c.Aligner.WhisperModel, defaultWhisperModel)
	setInt(&c.Aligner.TimeoutSeconds, defaultAlignerTimeout)

	if len(c.Aligner.Command) == 0 {
		c.Aligner.Command = []string{"python3", "-m", "aeneas.tools.execute_task"}
	}

	setInt(&c.Worker.ErrorBackoffSeconds, defaultErrorBackoffSeconds)

	setString(&c.Health.Addr, defaultHealthAddr)
	setString(&c.Paths.BaseLogsDir, os.TempDir())
	setString(&c.Paths.TempDir, os.TempDir())
}

// Validate checks backend names and required settings.
func (c *Config) Validate() error {
	switch c.Queue.Backend {
	case QueueBackendSQS:
		if c.Queue.URL == "" {
			return ErrQueueURLRequired
		}
	case QueueBackendNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("%w for the nats queue backend", ErrNATSURLRequired)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQueueBackend, c.Queue.Backend)
	}

	if c.NATS.CompletedSubject != "" && c.NATS.URL == "" {
		return fmt.Errorf("%w for completion events", ErrNATSURLRequired)
	}

	switch c.TTS.Backend {
	case TTSBackendOpenAI, TTSBackendHTTP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTTSBackend, c.TTS.Backend)
	}

	switch c.Aligner.Backend {
	case AlignerBackendAeneas, AlignerBackendWhisper, AlignerBackendNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAlignerBackend, c.Aligner.Backend)
	}

	positives := []struct {
		name  string
		value int
	}{
		{"queue.wait_seconds", c.Queue.WaitSeconds},
		{"queue.visibility_timeout_seconds", c.Queue.VisibilityTimeoutSeconds},
		{"tts_service.timeout_seconds", c.TTS.TimeoutSeconds},
		{"aligner.timeout_seconds", c.Aligner.TimeoutSeconds},
	}

	for _, field := range positives {
		if field.value <= 0 {
			return fmt.Errorf("%w: %s = %d", ErrNonPositive, field.name, field.value)
		}
	}

	return nil
}

// PollWait is the long-poll wait as a duration.
func (c *Config) PollWait() time.Duration {
	return time.Duration(c.Queue.WaitSeconds) * time.Second
}

// VisibilityTimeout is the redelivery window as a duration.
func (c *Config) VisibilityTimeout() time.Duration {
	return time.Duration(c.Queue.VisibilityTimeoutSeconds) * time.Second
}

// JobTimeout bounds a single job; it defaults to the visibility timeout so a
// job gives up no later than its redelivery.
func (c *Config) JobTimeout() time.Duration {
	if c.Worker.JobTimeoutSeconds > 0 {
		return time.Duration(c.Worker.JobTimeoutSeconds) * time.Second
	}

	return c.VisibilityTimeout()
}

func setString(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

func setInt(target *int, value int) {
	if *target == 0 {
		*target = value
	}
}
