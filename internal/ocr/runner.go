package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner is the seam between the extractor and the tesseract/pdftoppm
// binaries, so OCR logic is testable on machines without them.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

const maxStderrInError = 2 << 10

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), stderr.Bytes(),
			fmt.Errorf("%s: %w: %s", name, err, clipStderr(stderr.Bytes()))
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// clipStderr flattens tool output into a single bounded line fit for an error
// message.
func clipStderr(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if len(s) > maxStderrInError {
		s = s[:maxStderrInError] + "…"
	}
	if s == "" {
		s = "(no stderr)"
	}
	return s
}
