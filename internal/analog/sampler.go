// internal/analog/sampler.go
package analog

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// SampleKind is the sampler input: voltage or current.
type SampleKind string

const (
	KindVoltage SampleKind = "uin"
	KindCurrent SampleKind = "iin"
)

// Sampler returns one raw value (volts or milliamps) per call.
type Sampler interface {
	Sample(ctx context.Context, stack, channel int, kind SampleKind) (float64, error)
}

// DefaultSamplerBinary is the industrial I/O card CLI.
const DefaultSamplerBinary = "megaind"

const defaultSampleTimeout = 2 * time.Second

// ExecSampler runs the sampling CLI once per sample:
//
//	<binary> <stack> uin|iin <channel>
//
// and expects a single number on stdout.
type ExecSampler struct {
	Binary  string
	Timeout time.Duration
}

func (s ExecSampler) Sample(ctx context.Context, stack, channel int, kind SampleKind) (float64, error) {
	bin := s.Binary
	if bin == "" {
		bin = DefaultSamplerBinary
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSampleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, strconv.Itoa(stack), string(kind), strconv.Itoa(channel))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	op := "sample " + string(kind) + " " + strconv.Itoa(channel)
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return 0, fault.Newf(fault.SamplingFailure, op, "",
				"%s exited %d: %s", bin, ee.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return 0, fault.New(fault.SamplingFailure, op, "", err)
	}

	return parseSample(op, stdout.String())
}

func parseSample(op, out string) (float64, error) {
	field := strings.TrimSpace(out)
	v, err := strconv.ParseFloat(field, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fault.Newf(fault.SamplingFailure, op, "", "malformed output %q", field)
	}
	return v, nil
}
