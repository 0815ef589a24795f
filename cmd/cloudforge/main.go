// Command cloudforge turns free-text cloud architecture descriptions
// into rendered diagrams.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cloudforge/internal/analyzer"
	"github.com/fyrsmithlabs/cloudforge/internal/blueprint"
	"github.com/fyrsmithlabs/cloudforge/internal/config"
	"github.com/fyrsmithlabs/cloudforge/internal/genai"
	"github.com/fyrsmithlabs/cloudforge/internal/logging"
	"github.com/fyrsmithlabs/cloudforge/internal/pipeline"
	"github.com/fyrsmithlabs/cloudforge/internal/render"
	"github.com/fyrsmithlabs/cloudforge/internal/synthesize"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagConfig  string
	flagName    string
	flagFormats []string
)

var rootCmd = &cobra.Command{
	Use:   "cloudforge",
	Short: "Generate cloud architecture diagrams from natural language",
	Long: `cloudforge runs a text description of a cloud architecture through a
generation pipeline (blueprint, enrichment, code synthesis, validation,
render) and writes diagram files in the requested formats.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var generateCmd = &cobra.Command{
	Use:   "generate [description]",
	Short: "Generate a diagram from an architecture description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cloudforge %s (%s)\n", version, commit)
	},
}

func init() {
	generateCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	generateCmd.Flags().StringVarP(&flagName, "name", "n", "diagram", "diagram name (output file base name)")
	generateCmd.Flags().StringSliceVarP(&flagFormats, "format", "f", nil, "output formats (overrides config)")

	rootCmd.AddCommand(generateCmd, versionCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(flagFormats) > 0 {
		cfg.Pipeline.Formats = flagFormats
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid formats: %w", err)
		}
	}

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	client, err := genai.NewGeminiClient(&cfg.Generation, log)
	if err != nil {
		return fmt.Errorf("init generation client: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithMaxRetries(cfg.Pipeline.MaxRetries),
		pipeline.WithFormats(cfg.Pipeline.Formats),
	}
	if cfg.Analyzer.Enabled {
		opts = append(opts, pipeline.WithAnalyzer(analyzer.New(client, log,
			analyzer.WithAgentTimeout(cfg.Analyzer.AgentTimeout.Duration()),
			analyzer.WithMaxOutputTokens(cfg.Analyzer.MaxOutputTokens),
		)))
	}

	orchestrator := pipeline.New(
		blueprint.NewGenerator(client, log),
		synthesize.New(client, log),
		render.NewExecRenderer(cfg.Render.Interpreter, cfg.Render.OutputDir, cfg.Render.Timeout.Duration(), log),
		log,
		opts...,
	)

	description := strings.Join(args, " ")
	result := orchestrator.Run(ctx, description, flagName)

	printResult(result)
	if !result.Success {
		log.Error(ctx, "generation failed", zap.Strings("errors", result.Errors))
		return fmt.Errorf("%s", result.Summary)
	}
	return nil
}

func printResult(result pipeline.Result) {
	fmt.Println(result.Summary)
	if result.Validation != nil {
		fmt.Printf("components: %d, relationships: %d\n",
			result.Validation.ComponentCount, result.Validation.RelationshipCount)
	}
	for format, path := range result.Artifacts {
		fmt.Printf("  %s: %s\n", format, path)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("recovered from %d error(s) during the run\n", len(result.Errors))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
