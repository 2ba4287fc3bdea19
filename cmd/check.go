package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dialogue-shorts/02_script"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check tools, assets and the script model",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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
	if err := p.Preflight(); err != nil {
		return err
	}

	provider, err := script.NewProvider(ctx, a.cfg.Script)
	if err != nil {
		return fmt.Errorf("script provider: %w", err)
	}
	if o, ok := provider.(*script.Ollama); ok {
		if err := o.Ping(ctx); err != nil {
			a.log.Warn("ollama is not reachable", zap.String("url", o.BaseURL), zap.Error(err))
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "all requirements met")
	return nil
}
