package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dialogue-shorts/01_research"
	"dialogue-shorts/02_script"
	"dialogue-shorts/03_audio"
	"dialogue-shorts/05_subtitles"
	"dialogue-shorts/config"
	"dialogue-shorts/ffmpeg"
	"dialogue-shorts/logging"
	"dialogue-shorts/pipeline"
	"dialogue-shorts/proc"
)

// settings holds flags and their DSHORTS_* environment overrides
var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:   "dshorts",
	Short: "Generate two-character dialogue shorts with synced subtitles",
	Long: `dshorts writes a two-character comedic dialogue about a topic, voices it,
times karaoke subtitles to the speech and renders a vertical short over a
gameplay background, optionally uploading it to YouTube.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// local dev only; CI passes secrets as env
		_ = godotenv.Load()
		return settings.BindPFlags(cmd.Flags())
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	settings.SetEnvPrefix("DSHORTS")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	pf := rootCmd.PersistentFlags()
	pf.String("config", "config.yaml", "config file")
	pf.BoolP("verbose", "v", false, "verbose logging")
	pf.BoolP("quiet", "q", false, "suppress non-error output")
	pf.String("profile", "", "subtitle profile (overrides subtitles.profile)")
	pf.String("output", "", "output directory (overrides paths.output)")
}

// app is what every command needs after flags are resolved
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	runner proc.Runner
}

func newApp() (*app, error) {
	log, err := logging.New(settings.GetBool("verbose"), settings.GetBool("quiet"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load(settings.GetString("config"))
	if err != nil {
		return nil, err
	}
	if p := settings.GetString("profile"); p != "" {
		if _, err := cfg.Profile(p); err != nil {
			return nil, err
		}
		cfg.Subtitles.Profile = p
	}
	if out := settings.GetString("output"); out != "" {
		cfg.Paths.Output = out
	}
	return &app{cfg: cfg, log: log, runner: proc.ExecRunner{Logger: log.Named("exec")}}, nil
}

// pipeline wires the production collaborators. Generation needs a model
// and a TTS engine; re-rendering and checks do not.
func (a *app) pipeline(ctx context.Context, generate bool) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Runner:      a.runner,
		Prober:      ffmpeg.FFProbe{},
		Transcriber: subtitles.NewTranscriber(a.cfg.Transcribe, a.runner),
	}
	if generate {
		provider, err := script.NewProvider(ctx, a.cfg.Script)
		if err != nil {
			return nil, err
		}
		tts, err := audio.NewEngine(a.cfg.TTS, a.runner)
		if err != nil {
			return nil, err
		}
		deps.Provider = provider
		deps.TTS = tts
	}
	return pipeline.New(a.cfg, deps, a.log)
}

// withReddit adds the Reddit client to a generating pipeline
func (a *app) withReddit(ctx context.Context) (*pipeline.Pipeline, error) {
	src, err := research.NewRedditSource()
	if err != nil {
		return nil, err
	}
	p, err := a.pipeline(ctx, true)
	if err != nil {
		return nil, err
	}
	p.SetReddit(src)
	return p, nil
}

// signalContext is cancelled on Ctrl-C so a running ffmpeg is stopped
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
