// Package config_test tests the configuration loading for the tts-worker.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tts-worker/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlData = `
[queue]
backend = "nats"
wait_seconds = 5
visibility_timeout_seconds = 60

[nats]
url = "nats://127.0.0.1:4222"
stream_name = "TTS_JOBS"
consumer_name = "tts-workers"
job_subject = "tts.jobs"
completed_subject = "tts.completed"

[tts_service]
backend = "http"
base_url = "http://kokoro:8000"
default_voice = "bf_emma"
timeout_seconds = 300

[aligner]
backend = "whisper"
whisper_model = "whisper-1"

[worker]
max_attempts = 5

[paths]
base_logs_dir = "/var/log/tts"
`

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats", cfg.Queue.Backend)
	assert.Equal(t, 5, cfg.Queue.WaitSeconds)
	assert.Equal(t, 60, cfg.Queue.VisibilityTimeoutSeconds)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "TTS_JOBS", cfg.NATS.StreamName)
	assert.Equal(t, "tts-workers", cfg.NATS.ConsumerName)
	assert.Equal(t, "tts.jobs", cfg.NATS.JobSubject)
	assert.Equal(t, "tts.completed", cfg.NATS.CompletedSubject)
	assert.Equal(t, "http", cfg.TTS.Backend)
	assert.Equal(t, "bf_emma", cfg.TTS.DefaultVoice)
	assert.Equal(t, 300, cfg.TTS.TimeoutSeconds)
	assert.Equal(t, "whisper", cfg.Aligner.Backend)
	assert.Equal(t, 5, cfg.Worker.MaxAttempts)
	assert.Equal(t, "/var/log/tts", cfg.Paths.BaseLogsDir)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Queue.URL = "https://sqs.us-east-1.amazonaws.com/123/tts-jobs"
	cfg.ApplyDefaults()

	assert.Equal(t, config.QueueBackendSQS, cfg.Queue.Backend)
	assert.Equal(t, 20*time.Second, cfg.PollWait())
	assert.Equal(t, 300*time.Second, cfg.VisibilityTimeout())
	assert.Equal(t, cfg.VisibilityTimeout(), cfg.JobTimeout())
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "af_heart", cfg.TTS.DefaultVoice)
	assert.Equal(t, config.TTSBackendOpenAI, cfg.TTS.Backend)
	assert.Equal(t, 24000, cfg.TTS.SampleRate)
	assert.Equal(t, config.AlignerBackendAeneas, cfg.Aligner.Backend)
	assert.Equal(t, []string{"python3", "-m", "aeneas.tools.execute_task"}, cfg.Aligner.Command)
	assert.Equal(t, ":8080", cfg.Health.Addr)
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_NATSWhenOnlyNATSURL(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.ApplyDefaults()

	assert.Equal(t, config.QueueBackendNATS, cfg.Queue.Backend)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"QUEUE_URL":    "https://sqs.eu-west-1.amazonaws.com/123/tts",
		"AWS_REGION":   "eu-west-1",
		"KOKORO_VOICE": "am_adam",
		"HEALTH_ADDR":  ":9090",
		"MAX_ATTEMPTS": "3",
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]

		return value, ok
	}

	cfg := config.Config{}
	cfg.Queue.Backend = config.QueueBackendNATS
	cfg.ApplyEnv(lookup)

	assert.Equal(t, config.QueueBackendSQS, cfg.Queue.Backend)
	assert.Equal(t, "https://sqs.eu-west-1.amazonaws.com/123/tts", cfg.Queue.URL)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "am_adam", cfg.TTS.DefaultVoice)
	assert.Equal(t, ":9090", cfg.Health.Addr)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{
			name:    "sqs without url",
			mutate:  func(cfg *config.Config) { cfg.Queue.URL = "" },
			wantErr: config.ErrQueueURLRequired,
		},
		{
			name:    "unknown queue backend",
			mutate:  func(cfg *config.Config) { cfg.Queue.Backend = "kafka" },
			wantErr: config.ErrUnknownQueueBackend,
		},
		{
			name:    "completion events without nats",
			mutate:  func(cfg *config.Config) { cfg.NATS.CompletedSubject = "tts.completed" },
			wantErr: config.ErrNATSURLRequired,
		},
		{
			name:    "unknown tts backend",
			mutate:  func(cfg *config.Config) { cfg.TTS.Backend = "espeak" },
			wantErr: config.ErrUnknownTTSBackend,
		},
		{
			name:    "unknown aligner backend",
			mutate:  func(cfg *config.Config) { cfg.Aligner.Backend = "gentle" },
			wantErr: config.ErrUnknownAlignerBackend,
		},
		{
			name:    "negative wait",
			mutate:  func(cfg *config.Config) { cfg.Queue.WaitSeconds = -1 },
			wantErr: config.ErrNonPositive,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Config{}
			cfg.Queue.URL = "https://sqs.us-east-1.amazonaws.com/123/tts-jobs"
			cfg.ApplyDefaults()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), testCase.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0o600))

	t.Setenv("QUEUE_URL", "")
	t.Setenv("NATS_URL", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("HEALTH_ADDR", ":7070")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, config.QueueBackendNATS, cfg.Queue.Backend)
	assert.Equal(t, 60*time.Second, cfg.JobTimeout())
	assert.Equal(t, ":7070", cfg.Health.Addr)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
