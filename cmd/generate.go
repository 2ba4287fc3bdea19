package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dialogue-shorts/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate one video",
	Long: `Generate one video about topic. Without a topic the best unused hot post
from the configured subreddits is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck

	ctx, cancel := signalContext()
	defer cancel()

	topic := ""
	if len(args) == 1 {
		topic = strings.TrimSpace(args[0])
	}
	if topic == "" {
		p, err := a.withReddit(ctx)
		if err != nil {
			return err
		}
		states, err := p.RunResearch(ctx, 1)
		for _, st := range states {
			report(cmd, st)
		}
		return err
	}

	p, err := a.pipeline(ctx, true)
	if err != nil {
		return err
	}
	if err := p.Preflight(); err != nil {
		return err
	}
	a.log.Info("generating", zap.String("topic", topic), zap.String("profile", a.cfg.Subtitles.Profile))
	st, err := p.Run(ctx, topic)
	if st != nil {
		report(cmd, st)
	}
	return err
}

// report prints the outcome of one run to stdout
func report(cmd *cobra.Command, st *types.PipelineState) {
	out := cmd.OutOrStdout()
	if st.Error != "" {
		fmt.Fprintf(out, "FAILED  %s  %s\n", st.Topic, st.Error)
		return
	}
	fmt.Fprintf(out, "OK      %s  %s\n", st.Topic, st.VideoFile)
	if st.YouTubeURL != "" {
		fmt.Fprintf(out, "        %s\n", st.YouTubeURL)
	}
}
