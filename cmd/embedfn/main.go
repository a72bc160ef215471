// Package main implements the embedfn CLI for inspecting and exercising the
// embedding initialization chain.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/embedfn/internal/config"
	"github.com/fyrsmithlabs/embedfn/internal/logging"
	"github.com/fyrsmithlabs/embedfn/pkg/embeddings"
)

var (
	// configPath is the YAML config file; empty uses the default path.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "embedfn",
	Short: "CLI for the embedfn embedding initialization chain",
	Long: `embedfn initializes a text embedding function with graceful degradation:
the configured engine first, a native-runtime shim retry for local models,
an optional external fallback API, and finally a deterministic hash embedder.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/embedfn/config.yaml)")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(embedCmd)
}

// checkCmd initializes the chain and reports what is actually serving.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Initialize the embedding chain and report the serving model",
	Long: `Initialize the embedding function and report which model ended up serving,
its dimension, and how the native runtime dependency was resolved.

Examples:
  # Check with the default config
  embedfn check

  # Check a specific config file
  embedfn check --config ./config.yaml`,
	RunE: runCheck,
}

// embedCmd embeds texts and prints vectors as JSON.
var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Embed texts and print the vectors as JSON",
	Long: `Embed one or more texts and print the vectors to stdout as JSON.
With no arguments, texts are read from stdin, one per line.

Examples:
  # Embed arguments
  embedfn embed "first text" "second text"

  # Embed stdin lines
  cat corpus.txt | embedfn embed`,
	RunE: runEmbed,
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	init := embeddings.NewInitializer(cfg.Embedding.ToInitConfig(), embeddings.WithLogger(logger))

	var state embeddings.State
	fn, err := init.Ensure(cmd.Context(), &state)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	vec, err := fn.EmbedQuery(cmd.Context(), "embedding readiness check", "", nil)
	if err != nil {
		return fmt.Errorf("probe embedding failed: %w", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	runtime := embeddings.EnsureRuntimeShim(logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "engine:     %s\n", engineName(fn.Engine()))
	fmt.Fprintf(out, "model:      %s\n", fn.ModelName())
	fmt.Fprintf(out, "dimension:  %d\n", fn.Dimension())
	fmt.Fprintf(out, "probe norm: %.4f\n", math.Sqrt(sum))
	fmt.Fprintf(out, "runtime:    %s", runtime.Kind)
	if runtime.LibraryPath != "" {
		fmt.Fprintf(out, " (%s)", runtime.LibraryPath)
	}
	fmt.Fprintln(out)
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	texts := args
	if len(texts) == 0 {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				texts = append(texts, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("no texts to embed")
	}

	init := embeddings.NewInitializer(cfg.Embedding.ToInitConfig(), embeddings.WithLogger(logger))

	var state embeddings.State
	fn, err := init.Ensure(cmd.Context(), &state)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	vectors, err := fn.Embed(cmd.Context(), texts, "", nil)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	result := struct {
		Model      string      `json:"model"`
		Dimension  int         `json:"dimension"`
		Embeddings [][]float32 `json:"embeddings"`
	}{
		Model:      fn.ModelName(),
		Dimension:  fn.Dimension(),
		Embeddings: vectors,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(result)
}

func engineName(engine string) string {
	if engine == embeddings.EngineLocal {
		return "local"
	}
	return engine
}
