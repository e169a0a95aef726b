package voice

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// LineRecognizer treats each line read from r as one utterance. A blank
// line is reported as no-speech.
type LineRecognizer struct {
	lines <-chan lineResult
}

type lineResult struct {
	text string
	err  error
}

// NewLineRecognizer starts reading r in the background
func NewLineRecognizer(r io.Reader) *LineRecognizer {
	lines := make(chan lineResult)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- lineResult{text: scanner.Text()}
		}
		if err := scanner.Err(); err != nil {
			lines <- lineResult{err: &RecognitionError{Code: CodeNetwork, Err: err}}
		}
	}()
	return &LineRecognizer{lines: lines}
}

// Listen returns the next line
func (l *LineRecognizer) Listen(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		if strings.TrimSpace(res.text) == "" {
			return "", &RecognitionError{Code: CodeNoSpeech}
		}
		return res.text, nil
	}
}
