package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/handiism/bandcamp-purchases/internal/config"
	"github.com/handiism/bandcamp-purchases/internal/logging"
	"github.com/handiism/bandcamp-purchases/internal/scrape"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	cookie     string
	logLevel   string
	verbose    bool

	settings *config.Settings
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "bandcamp-export",
		Short: "Export your Bandcamp purchase history",
		Long: `bandcamp-export signs in to Bandcamp with your browser's identity cookie,
collects every purchase in your collection (including hidden items) and
exports them as CSV, JSON or Parquet.

Copy the "identity" cookie from your browser's developer tools while
logged in to bandcamp.com and pass it with --cookie or BANDCAMP_COOKIE.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&a.cookie, "cookie", "", "Bandcamp identity cookie, or - to read it from stdin (env "+config.EnvCookie+")")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Show a line for every fetched page")

	cmd.AddCommand(
		newAuthCmd(a),
		newScrapeCmd(a),
		newExportCmd(a),
		newResetCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
		newTUICmd(a),
		newConfigCmd(a),
	)

	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	settings, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	settings.ApplyEnv()
	if a.logLevel != "" {
		settings.LogLevel = a.logLevel
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	a.settings = settings
	a.logger = logging.New(cmd.ErrOrStderr(), logging.ParseLevel(settings.LogLevel))
	slog.SetDefault(a.logger)
	return nil
}

// cookieValue returns the cookie from --cookie, stdin or the environment.
func (a *app) cookieValue(stdin io.Reader) (string, error) {
	cookie := a.cookie
	if cookie == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read cookie from stdin: %w", err)
		}
		cookie = string(data)
	}
	if strings.TrimSpace(cookie) == "" {
		cookie = os.Getenv(config.EnvCookie)
	}
	cookie = strings.TrimSpace(cookie)
	if cookie == "" {
		return "", errors.New("no cookie given: pass --cookie or set " + config.EnvCookie)
	}
	return cookie, nil
}

func (a *app) openSession(ctx context.Context, out io.Writer) (*scrape.Session, error) {
	return scrape.Open(ctx, a.settings, a.logger, a.printer(out))
}

// printer renders manager events as prefixed lines.
func (a *app) printer(w io.Writer) func(scrape.ProgressEvent) {
	return func(event scrape.ProgressEvent) {
		if event.Level == scrape.LevelVerbose && !a.verbose {
			return
		}

		var prefix string
		switch event.Level {
		case scrape.LevelError:
			prefix = "✗ "
		case scrape.LevelWarning:
			prefix = "! "
		case scrape.LevelSuccess:
			prefix = "✓ "
		case scrape.LevelInfo:
			prefix = "› "
		default:
			prefix = "  "
		}

		fmt.Fprintln(w, prefix+event.Message)
	}
}
