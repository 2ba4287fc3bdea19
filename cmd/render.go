package cmd

import (
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <run-dir>",
	Short: "Rebuild subtitles and video of an earlier run",
	Long: `Rebuild the subtitles and final video of an earlier run from its
script.json and audio clips. Combine with --profile to try another
subtitle style without calling the model or the TTS engine again.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck

	ctx, cancel := signalContext()
	defer cancel()

	p, err := a.pipeline(ctx, false)
	if err != nil {
		return err
	}
	st, err := p.Rerender(ctx, args[0])
	if st != nil {
		report(cmd, st)
	}
	return err
}
