// Package cmd implements the quip-export command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	quip "github.com/JimmyFromTheEarth/quip-export"
	"github.com/JimmyFromTheEarth/quip-export/internal/config"
	"github.com/JimmyFromTheEarth/quip-export/internal/export"
	"github.com/JimmyFromTheEarth/quip-export/internal/logging"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{"dev", "unknown", "unknown"}

// SetVersionInfo is called by the main package with ldflags values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// app carries the state shared by all subcommands. It is populated in the
// root command's PersistentPreRunE.
type app struct {
	v       *viper.Viper
	cfgFile string
	debug   bool

	cfg    *config.Config
	logger *zap.Logger
	client *quip.Client
	fs     afero.Fs
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	root, a := newRootCommand()

	err := root.ExecuteContext(ctx)
	a.syncLogger()

	return err
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{
		v:  config.New(),
		fs: afero.NewOsFs(),
	}

	root := &cobra.Command{
		Use:   "quip-export",
		Short: "Export Quip threads while respecting the API rate limits",
		Long: `quip-export fetches threads, attachments and exports from the Quip
automation API. Calls are spaced to stay within the per-minute quota and
retried when the API is rate limited or temporarily unavailable.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			defer a.syncLogger()

			if a.client == nil {
				return nil
			}
			return renderStats(cmd.OutOrStdout(), a.client.Stats(), a.client.RateLimit())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./quip-export.yaml or ~/.config/quip-export/quip-export.yaml)")
	flags.StringP("token", "t", "", "Quip access token, see https://quip.com/dev/token")
	flags.String("api-url", quip.DefaultAPIURL, "Quip API URL, for company hosted Quip instances")
	flags.Int("rate-limits", quip.DefaultRateLimitPerMinute, "API calls allowed per user per minute")
	flags.Bool("delay-mode", false, "wait the spacing interval before every API call")
	flags.Int("retry-limit", quip.DefaultRetryLimit, "retries allowed per request target")
	flags.Duration("poll-interval", 5*time.Second, "wait between status polls of a PDF export")
	flags.Int("max-polls", 120, "status polls of a PDF export before giving up")
	flags.Duration("timeout", time.Minute, "timeout of a single API request")
	flags.StringP("destination", "d", "quip-export", "destination folder for export files")
	flags.Bool("docx", false, "export documents as *.docx instead of *.pdf")
	flags.Bool("comments", false, "also export the comments of each thread")
	flags.StringSlice("folders", nil, "comma-separated folder ids to export")
	flags.BoolVar(&a.debug, "debug", false, "debug logging")

	bindings := map[string]string{
		config.KeyToken:        "token",
		config.KeyAPIURL:       "api-url",
		config.KeyRateLimit:    "rate-limits",
		config.KeyDelayMode:    "delay-mode",
		config.KeyRetryLimit:   "retry-limit",
		config.KeyPollInterval: "poll-interval",
		config.KeyMaxPolls:     "max-polls",
		config.KeyTimeout:      "timeout",
		config.KeyDestination:  "destination",
		config.KeyDOCX:         "docx",
		config.KeyComments:     "comments",
		config.KeyFolders:      "folders",
	}
	for key, flag := range bindings {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag --%s to %s: %v", flag, key, err))
		}
	}

	root.AddCommand(
		newCheckCommand(a),
		newThreadCommand(a),
		newExportCommand(a),
		newBlobCommand(a),
		newUserCommand(a),
	)

	return root, a
}

func (a *app) setup(ctx context.Context) error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}

	if a.debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}

	client, err := quip.New(cfg.Token, cfg.ClientOptions(logging.NewRequestLogger(logger))...)
	if err != nil {
		return err
	}

	logger.Debug("Connecting to Quip",
		zap.String("api_url", cfg.APIURL),
		zap.Int("rate_limit", cfg.RateLimit),
		zap.Duration("spacing", client.Spacing()),
		zap.Bool("delay_mode", cfg.DelayMode),
	)

	if err := client.Connect(ctx); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.client = client

	return nil
}

// syncLogger flushes buffered log entries. Sync on a terminal stderr fails
// with EINVAL on Linux, so the error is only reported in debug mode.
func (a *app) syncLogger() {
	if a.logger == nil {
		return
	}

	if err := a.logger.Sync(); err != nil && a.debug {
		fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
	}
}

func (a *app) exporter() *export.Exporter {
	writer := export.NewFileWriter(a.fs, a.cfg.Destination)

	return export.NewExporter(a.client, writer, a.logger, export.Options{
		DOCX:     a.cfg.DOCX,
		Comments: a.cfg.Comments,
	})
}
