// Package subtitle builds, encodes and parses SubRip (SRT) subtitle cues.
package subtitle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ContentType is the media type used when publishing SRT artifacts.
const ContentType = "application/x-subrip"

const (
	timingSeparator = " --> "
	millisPerSecond = 1000
	secondsPerHour  = 3600
	secondsPerMin   = 60
	timestampFormat = "%02d:%02d:%02d,%03d"
)

// Error messages.
const (
	errFmtMalformedBlock = "%w: block %d: %s"
	errFmtBadTimestamp   = "%w: %q"
)

var (
	// ErrMalformedCue is returned when an SRT block cannot be parsed.
	ErrMalformedCue = errors.New("malformed subtitle cue")
	// ErrInvalidTimestamp is returned for timestamps not in HH:MM:SS,mmm form.
	ErrInvalidTimestamp = errors.New("invalid subtitle timestamp")
	// ErrNoCues is returned when an SRT document contains no cues.
	ErrNoCues = errors.New("subtitle document contains no cues")
)

// Cue is one timed caption.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// FormatTimestamp renders d as an SRT timestamp (HH:MM:SS,mmm). Negative
// durations render as zero.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalMillis := d.Milliseconds()
	millis := totalMillis % millisPerSecond
	totalSeconds := totalMillis / millisPerSecond

	return fmt.Sprintf(
		timestampFormat,
		totalSeconds/secondsPerHour,
		(totalSeconds/secondsPerMin)%secondsPerMin,
		totalSeconds%secondsPerMin,
		millis,
	)
}

// Encode renders cues as an SRT document. Cues are renumbered from 1 in the
// order given; cue text is trimmed.
func Encode(cues []Cue) []byte {
	var buf bytes.Buffer

	for i, cue := range cues {
		buf.WriteString(strconv.Itoa(i + 1))
		buf.WriteByte('\n')
		buf.WriteString(FormatTimestamp(cue.Start))
		buf.WriteString(timingSeparator)
		buf.WriteString(FormatTimestamp(cue.End))
		buf.WriteByte('\n')
		buf.WriteString(strings.TrimSpace(cue.Text))
		buf.WriteString("\n\n")
	}

	return buf.Bytes()
}

// Parse reads an SRT document. Blocks are separated by blank lines and must
// carry an index line, a timing line and at least one text line.
func Parse(data []byte) ([]Cue, error) {
	normalized := strings.ReplaceAll(string(data), "\r\n", "\n")
	normalized = strings.TrimPrefix(normalized, "\ufeff")

	var (
		cues  []Cue
		block []string
	)

	flush := func() error {
		if len(block) == 0 {
			return nil
		}

		cue, err := parseBlock(block, len(cues)+1)
		block = block[:0]

		if err != nil {
			return err
		}

		cues = append(cues, cue)

		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(normalized))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flushErr := flush()
			if flushErr != nil {
				return nil, flushErr
			}

			continue
		}

		block = append(block, line)
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return nil, fmt.Errorf("failed to read subtitle document: %w", scanErr)
	}

	flushErr := flush()
	if flushErr != nil {
		return nil, flushErr
	}

	if len(cues) == 0 {
		return nil, ErrNoCues
	}

	return cues, nil
}

func parseBlock(lines []string, position int) (Cue, error) {
	if len(lines) < 3 {
		return Cue{}, fmt.Errorf(errFmtMalformedBlock, ErrMalformedCue, position, "too few lines")
	}

	index, err := strconv.Atoi(lines[0])
	if err != nil {
		return Cue{}, fmt.Errorf(errFmtMalformedBlock, ErrMalformedCue, position, "bad index")
	}

	startText, endText, found := strings.Cut(lines[1], "-->")
	if !found {
		return Cue{}, fmt.Errorf(errFmtMalformedBlock, ErrMalformedCue, position, "missing timing separator")
	}

	start, err := ParseTimestamp(strings.TrimSpace(startText))
	if err != nil {
		return Cue{}, err
	}

	end, err := ParseTimestamp(strings.TrimSpace(endText))
	if err != nil {
		return Cue{}, err
	}

	if end < start {
		return Cue{}, fmt.Errorf(errFmtMalformedBlock, ErrMalformedCue, position, "end before start")
	}

	return Cue{
		Index: index,
		Start: start,
		End:   end,
		Text:  strings.Join(lines[2:], "\n"),
	}, nil
}

// ParseTimestamp parses HH:MM:SS,mmm. A '.' millisecond separator is also
// accepted.
func ParseTimestamp(value string) (time.Duration, error) {
	clock, millisText, found := strings.Cut(strings.Replace(value, ".", ",", 1), ",")
	if !found {
		return 0, fmt.Errorf(errFmtBadTimestamp, ErrInvalidTimestamp, value)
	}

	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf(errFmtBadTimestamp, ErrInvalidTimestamp, value)
	}

	var fields [4]int

	for i, part := range append(parts, millisText) {
		number, err := strconv.Atoi(part)
		if err != nil || number < 0 {
			return 0, fmt.Errorf(errFmtBadTimestamp, ErrInvalidTimestamp, value)
		}

		fields[i] = number
	}

	if fields[1] >= secondsPerMin || fields[2] >= secondsPerMin || fields[3] >= millisPerSecond {
		return 0, fmt.Errorf(errFmtBadTimestamp, ErrInvalidTimestamp, value)
	}

	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second +
		time.Duration(fields[3])*time.Millisecond, nil
}
