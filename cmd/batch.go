package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dialogue-shorts/01_research"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate one video per topic",
	Long: `Generate one video per topic, read from a file (one topic per line,
# starts a comment) or pulled from Reddit. A failed topic does not stop
the batch.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var (
	topicsFile  string
	redditCount int
)

func init() {
	batchCmd.Flags().StringVarP(&topicsFile, "file", "f", "", "topics file")
	batchCmd.Flags().IntVar(&redditCount, "reddit", 0, "number of topics to pull from Reddit")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if (topicsFile == "") == (redditCount <= 0) {
		return errors.New("pass exactly one of --file or --reddit")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck

	ctx, cancel := signalContext()
	defer cancel()

	if redditCount > 0 {
		p, err := a.withReddit(ctx)
		if err != nil {
			return err
		}
		states, err := p.RunResearch(ctx, redditCount)
		for _, st := range states {
			report(cmd, st)
		}
		return err
	}

	topics, err := research.FromFile(topicsFile)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return fmt.Errorf("no topics in %s", topicsFile)
	}
	p, err := a.pipeline(ctx, true)
	if err != nil {
		return err
	}
	states, err := p.RunBatch(ctx, topics)
	for _, st := range states {
		report(cmd, st)
	}
	return err
}
