package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dialogue-shorts/04_visuals"
)

var overlaysCmd = &cobra.Command{
	Use:   "overlays",
	Short: "Pre-render the green-screen character videos",
	Args:  cobra.NoArgs,
	RunE:  runOverlays,
}

var forceOverlays bool

func init() {
	overlaysCmd.Flags().BoolVar(&forceOverlays, "force", false, "re-render existing overlays")
	rootCmd.AddCommand(overlaysCmd)
}

func runOverlays(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck

	ctx, cancel := signalContext()
	defer cancel()

	paths, err := visuals.NewOverlayBuilder(a.cfg, a.runner, a.log).Run(ctx, forceOverlays)
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return err
}
