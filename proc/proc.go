package proc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"dialogue-shorts/logging"
)

// Command is one external program invocation. Args are passed to the
// program as-is, never through a shell.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes external commands. Stages depend on this so tests can
// substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	Logger *zap.Logger
}

// Run executes cmd and returns its stdout. On failure the error carries the
// tail of stderr, which is where ffmpeg and whisper report problems.
func (r ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	log := logging.OrNop(r.Logger)
	log.Debug("exec", zap.String("cmd", cmd.Name), zap.Strings("args", cmd.Args))

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", cmd.Name, err, Tail(stderr.String(), 600))
	}
	return stdout.Bytes(), nil
}

// LookPath reports whether name resolves to an executable on PATH
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Tail returns at most the last n bytes of s, trimmed
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
