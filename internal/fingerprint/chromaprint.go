// Package fingerprint identifies audio files through Chromaprint and the
// AcoustID web service.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
)

// ErrFpcalcNotFound is returned when the fpcalc binary cannot be found.
var ErrFpcalcNotFound = errors.New("fpcalc binary not found")

// Fingerprint is the Chromaprint fingerprint of an audio file.
type Fingerprint struct {
	Duration    int    // seconds
	Fingerprint string // compressed, base64
}

// Chromaprint runs the fpcalc command line tool.
type Chromaprint struct {
	path string
}

// NewChromaprint creates a Chromaprint wrapper. An empty path means "fpcalc"
// from PATH.
func NewChromaprint(path string) *Chromaprint {
	if path == "" {
		path = "fpcalc"
	}
	return &Chromaprint{path: path}
}

// Available reports whether the fpcalc binary can be found.
func (c *Chromaprint) Available() bool {
	_, err := exec.LookPath(c.path)
	return err == nil
}

// Generate computes the fingerprint of the file at path.
func (c *Chromaprint) Generate(ctx context.Context, path string) (Fingerprint, error) {
	bin, err := exec.LookPath(c.path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %s", ErrFpcalcNotFound, c.path)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-json", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Fingerprint{}, fmt.Errorf("fpcalc failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return parseFpcalcOutput(stdout.Bytes())
}

func parseFpcalcOutput(out []byte) (Fingerprint, error) {
	var raw struct {
		Duration    float64 `json:"duration"`
		Fingerprint string  `json:"fingerprint"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return Fingerprint{}, fmt.Errorf("failed to parse fpcalc output: %w", err)
	}
	if raw.Fingerprint == "" {
		return Fingerprint{}, errors.New("fpcalc returned an empty fingerprint")
	}
	return Fingerprint{
		Duration:    int(math.Round(raw.Duration)),
		Fingerprint: raw.Fingerprint,
	}, nil
}
