// main package for tts-submit, which enqueues a single TTS job.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-worker/internal/app"
	"github.com/book-expert/tts-worker/internal/config"
	"github.com/book-expert/tts-worker/internal/job"
)

// Flag names.
const (
	flagText     = "text"
	flagTextFile = "text-file"
	flagAudioOut = "audio-out"
	flagSubsOut  = "subs-out"
	flagVoice    = "voice"
	flagSpeed    = "speed"
	flagNoAlign  = "no-align"
	flagConfig   = "config"
)

// Flag descriptions.
const (
	flagTextDesc     = "Text to convert to speech"
	flagTextFileDesc = "File containing the text to convert to speech"
	flagAudioOutDesc = "Destination of the WAV file (s3://, nats:// or file:///)"
	flagSubsOutDesc  = "Destination of the SRT file (s3://, nats:// or file:///)"
	flagVoiceDesc    = "Voice name (defaults to the worker's voice)"
	flagSpeedDesc    = "Speech speed multiplier (defaults to 1.0)"
	flagNoAlignDesc  = "Use sentence timing instead of forced alignment"
	flagConfigDesc   = "Path to a TOML configuration file"
)

const (
	logFileName = "tts-submit.log"
	sendTimeout = 30 * time.Second
)

var (
	// ErrEitherTextOrFile indicates that neither --text nor --text-file was given.
	ErrEitherTextOrFile = errors.New("either --text or --text-file must be provided")
	// ErrCannotSpecifyBoth indicates that both --text and --text-file were given.
	ErrCannotSpecifyBoth = errors.New("cannot specify both --text and --text-file")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text     string
	textFile string
	audioOut string
	subsOut  string
	voice    string
	speed    float64
	noAlign  bool
	config   string
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = config.LoadDotEnv()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	msg, err := buildMessage(flags)
	if err != nil {
		return err
	}

	body, err := validate(msg, cfg.TTS.DefaultVoice)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	err = send(ctx, cfg, body)
	if err != nil {
		log.Error("Failed to submit job for %s: %v", msg.AudioOut, err)

		return err
	}

	log.Info("Submitted job: audio=%s subs=%s", msg.AudioOut, msg.SubsOut)
	fmt.Fprintf(stdout, "Submitted job: audio=%s subs=%s\n", msg.AudioOut, msg.SubsOut)

	return nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("tts-submit", flag.ContinueOnError)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.textFile, flagTextFile, "", flagTextFileDesc)
	flagSet.StringVar(&flags.audioOut, flagAudioOut, "", flagAudioOutDesc)
	flagSet.StringVar(&flags.subsOut, flagSubsOut, "", flagSubsOutDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.Float64Var(&flags.speed, flagSpeed, 0, flagSpeedDesc)
	flagSet.BoolVar(&flags.noAlign, flagNoAlign, false, flagNoAlignDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	return config.FromEnv()
}

// buildMessage turns flags into a job message. Optional fields stay unset
// unless given so the worker's defaults apply.
func buildMessage(flags appFlags) (job.Message, error) {
	if flags.text == "" && flags.textFile == "" {
		return job.Message{}, ErrEitherTextOrFile
	}

	if flags.text != "" && flags.textFile != "" {
		return job.Message{}, ErrCannotSpecifyBoth
	}

	text := flags.text

	if flags.textFile != "" {
		data, err := os.ReadFile(flags.textFile)
		if err != nil {
			return job.Message{}, fmt.Errorf("failed to read text file: %w", err)
		}

		text = string(data)
	}

	msg := job.Message{
		Text:     text,
		AudioOut: flags.audioOut,
		SubsOut:  flags.subsOut,
		Voice:    flags.voice,
	}

	if flags.speed != 0 {
		speed := flags.speed
		msg.Speed = &speed
	}

	if flags.noAlign {
		useAlignment := false
		msg.UseAlignment = &useAlignment
	}

	return msg, nil
}

// validate checks msg the way the worker will and returns its wire form.
func validate(msg job.Message, defaultVoice string) ([]byte, error) {
	_, err := msg.Resolve(job.Defaults{Voice: defaultVoice})
	if err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	body, err := msg.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}

	return body, nil
}

func send(ctx context.Context, cfg *config.Config, body []byte) error {
	res, err := app.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	jobQueue, err := app.NewQueue(cfg, res)
	if err != nil {
		return fmt.Errorf("failed to open job queue: %w", err)
	}
	defer jobQueue.Close()

	return jobQueue.Send(ctx, body)
}
