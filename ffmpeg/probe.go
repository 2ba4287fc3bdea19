package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	ffgo "github.com/u2takey/ffmpeg-go"

	"dialogue-shorts/proc"
)

// Prober measures media durations in seconds
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// DefaultProbeTimeout bounds one ffprobe call when the context carries no
// earlier deadline
const DefaultProbeTimeout = 30 * time.Second

// FFProbe probes files with ffprobe through ffmpeg-go
type FFProbe struct {
	Timeout time.Duration
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Duration returns the container duration, falling back to the longest
// stream duration when the container does not report one. It returns as
// soon as ctx is done; the ffprobe process itself is killed once the
// timeout elapses.
func (p FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	timeout := p.timeout(ctx)
	go func() {
		out, err := ffgo.ProbeWithTimeout(path, timeout, ffgo.KwArgs{})
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return 0, fmt.Errorf("ffprobe %s: %w", path, r.err)
		}
		return ParseProbeDuration(r.out)
	}
}

func (p FFProbe) timeout(ctx context.Context) time.Duration {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, max(time.Until(deadline), time.Millisecond))
	}
	return timeout
}

// ParseProbeDuration reads the duration out of ffprobe's JSON output
func ParseProbeDuration(raw string) (float64, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if d, ok := parsePositive(p.Format.Duration); ok {
		return d, nil
	}
	var best float64
	for _, s := range p.Streams {
		if d, ok := parsePositive(s.Duration); ok && d > best {
			best = d
		}
	}
	if best > 0 {
		return best, nil
	}
	return 0, errors.New("ffprobe reported no duration")
}

func parsePositive(s string) (float64, bool) {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// DetectEncoder returns the hardware H.264 encoder when ffmpeg lists it,
// otherwise libx264.
func DetectEncoder(ctx context.Context, runner proc.Runner) string {
	out, err := runner.Run(ctx, proc.Command{Name: "ffmpeg", Args: []string{"-hide_banner", "-encoders"}})
	if err != nil {
		return "libx264"
	}
	if strings.Contains(string(out), "h264_videotoolbox") {
		return "h264_videotoolbox"
	}
	return "libx264"
}
