// Package align produces subtitle cues timed against synthesized audio.
package align

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/tts-worker/internal/subtitle"
)

const (
	scriptFileName = "script.txt"
	syncMapName    = "alignment.srt"
	defaultLang    = "eng"
	filePerm       = 0o600
	waitDelay      = 2 * time.Second
)

var (
	// ErrNoCommand indicates an AeneasAligner without a command to run.
	ErrNoCommand = errors.New("aligner command cannot be empty")
	// ErrEmptyText indicates an alignment request without text.
	ErrEmptyText = errors.New("alignment text cannot be empty")
)

// AeneasAligner runs the aeneas forced aligner as an external process.
// The command is invoked as:
//
//	<command...> <audio> <script.txt> <config> <out.srt>
type AeneasAligner struct {
	command  []string
	language string
}

// NewAeneasAligner creates an aligner for command, typically
// ["python3", "-m", "aeneas.tools.execute_task"].
func NewAeneasAligner(command []string, language string) (*AeneasAligner, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, ErrNoCommand
	}

	if language == "" {
		language = defaultLang
	}

	return &AeneasAligner{command: command, language: language}, nil
}

// TaskConfig is the aeneas configuration string for plain text in, SRT out.
func (a *AeneasAligner) TaskConfig() string {
	return fmt.Sprintf("task_language=%s|is_text_type=plain|os_task_file_format=srt", a.language)
}

// Align writes text one sentence per line, runs aeneas and parses the SRT
// sync map it produces.
func (a *AeneasAligner) Align(ctx context.Context, audioPath, text string) ([]subtitle.Cue, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}

	workDir, err := os.MkdirTemp("", "aeneas-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create alignment work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	sentences := subtitle.SplitSentences(trimmed)
	if len(sentences) == 0 {
		sentences = []string{trimmed}
	}

	scriptPath := filepath.Join(workDir, scriptFileName)

	err = os.WriteFile(scriptPath, []byte(strings.Join(sentences, "\n")+"\n"), filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to write alignment script: %w", err)
	}

	outPath := filepath.Join(workDir, syncMapName)

	args := make([]string, 0, len(a.command)+3)
	args = append(args, a.command[1:]...)
	args = append(args, audioPath, scriptPath, a.TaskConfig(), outPath)

	// #nosec G204 -- the command comes from operator configuration
	cmd := exec.CommandContext(ctx, a.command[0], args...)

	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("aeneas execution failed: %w - output: %s", err, strings.TrimSpace(stderr.String()))
	}

	syncMap, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read aeneas output: %w", err)
	}

	cues, err := subtitle.Parse(syncMap)
	if err != nil {
		return nil, fmt.Errorf("invalid aeneas output: %w", err)
	}

	return cues, nil
}
