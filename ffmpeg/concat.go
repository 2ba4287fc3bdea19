package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dialogue-shorts/proc"
)

// ConcatList renders a concat demuxer list for files, in order
func ConcatList(files []string) string {
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, ConcatEntry(f))
	}
	return strings.Join(lines, "\n") + "\n"
}

// ConcatAudio joins audio files in order into output using the concat
// demuxer. The list file is written next to the output.
func ConcatAudio(ctx context.Context, runner proc.Runner, files []string, output string) error {
	if len(files) == 0 {
		return errors.New("concat: no input files")
	}
	abs := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		abs = append(abs, p)
	}

	listFile := filepath.Join(filepath.Dir(output), "concat_list.txt")
	if err := os.WriteFile(listFile, []byte(ConcatList(abs)), 0644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	b := NewBuilder()
	b.Input(listFile, "-f", "concat", "-safe", "0")
	args, err := b.Option("-c:a", "pcm_s16le").Output(output).Args()
	if err != nil {
		return err
	}
	if _, err := runner.Run(ctx, proc.Command{Name: "ffmpeg", Args: args}); err != nil {
		return fmt.Errorf("concat audio: %w", err)
	}
	return nil
}
