package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brandflow/brandflow/internal/config"
)

var version = "dev"

var (
	noColor bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "brandflow",
	Short: "Brand, content and competitor flows for marketing teams",
	Long: `brandflow serves cached AI generation flows (brand positioning, chatbot,
content drafting, competitor watch) over HTTP and MCP, and talks to a
running server from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
		level := "info"
		if cfg, err := config.Load(); err == nil {
			level = cfg.Log.Level
		}
		l, err := newLogger(level)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Version = version

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(brandCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(leadCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(configCmd)
}

// newLogger builds the production JSON logger on stderr at level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
