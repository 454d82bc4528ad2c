package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/akolanti/PageIndexAPI/internal/app"
	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dataDir string
	jsonOut bool
	verbose bool
}

// openApp builds the components a command needs. Commands that never call
// the model pass needLLM=false and run without provider credentials.
var openApp = func(ctx context.Context, settings config.Settings, needLLM bool) (*app.App, error) {
	opts := app.Options{}
	if needLLM {
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	} else {
		opts.Provider = offlineProvider{}
	}
	return app.New(ctx, settings, opts)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "pageindex",
		Short: "Tree index and reasoning search for PDFs",
		Long: `pageindex turns a PDF into a hierarchical table-of-contents tree with
per-section summaries, then answers questions by letting an LLM walk that
tree to the pages that matter. No embeddings, no vector store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			// stdout carries command output and the MCP stream
			logger_i.InitWithWriter(cmd.ErrOrStderr(), level, false)
		},
	}
	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("pageindex %s\n", versionString()))

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (overrides DATA_DIR)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print raw JSON instead of styled output")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newIngestCmd(opts),
		newSearchCmd(opts),
		newListCmd(opts),
		newDeleteCmd(opts),
		newPurgeCmd(opts),
		newExtractCmd(opts),
		newInfoCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) settings() config.Settings {
	s := config.Load()
	if o.dataDir != "" {
		s.DataDir = o.dataDir
	}
	return s
}

func (o *rootOptions) open(cmd *cobra.Command, needLLM bool) (*app.App, error) {
	return openApp(cmd.Context(), o.settings(), needLLM)
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate)
}

var errOffline = errors.New("no LLM provider configured for this command")

// offlineProvider stands in for the model on commands that only touch storage.
type offlineProvider struct{}

func (offlineProvider) Generate(context.Context, llm.Request) (string, error) {
	return "", errOffline
}

func (offlineProvider) Name() string {
	return "offline"
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close:", err)
	}
}
