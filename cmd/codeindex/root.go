package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/config"
	"github.com/dshills/codeindex/internal/engine"
)

var (
	cfgFile string
	cfg     config.Config
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codeindex",
	Short: "Incremental, structure-aware code chunking",
	Long: `codeindex splits source trees into token-bounded chunks along their
syntax structure and re-chunks only the files that changed since the last run.
Paths can be obfuscated before anything leaves the process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		// stdout belongs to command output and the MCP protocol
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(cfg.LogLevel()).
			With().Timestamp().Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON)")
}

func openEngine() (*engine.Engine, error) {
	return engine.Open(cfg, logger)
}
