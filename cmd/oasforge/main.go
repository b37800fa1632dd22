// Command oasforge drives the test-synthesis engine's CLI surface:
// the generate subcommand of spec.md §6.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blackcoderx/oasforge/internal/config"
	"github.com/blackcoderx/oasforge/internal/negative"
	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/orchestrator"
	"github.com/blackcoderx/oasforge/internal/specmodel"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	flagBaseURL             string
	flagSpecPath            string
	flagStructural          bool
	flagFunctional          bool
	flagEnvInitScript       string
	flagUserInput           string
	flagMaxCapturedArrayLen int
	flagNegativeStatus      int
	flagMaxWorkers          int
	flagEnvFile             string
	flagOutDir              string
	flagRunOptionsFile      string

	rootCmd = &cobra.Command{
		Use:   "oasforge",
		Short: "oasforge synthesizes runnable API test suites from an OpenAPI spec",
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Plan, generate and emit a full test suite for every operation in the spec",
		RunE:  runGenerate,
	}
)

func init() {
	generateCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "base URL of the system under test (required)")
	generateCmd.Flags().StringVar(&flagSpecPath, "spec-path", "", "path to the OpenAPI 3.x document (required)")
	generateCmd.Flags().BoolVar(&flagStructural, "structural", true, "generate structural negative scenarios")
	generateCmd.Flags().BoolVar(&flagFunctional, "functional", true, "generate functional negative scenarios")
	generateCmd.Flags().StringVar(&flagEnvInitScript, "env-init-script", "", "script invoked before baseline generation and each test case")
	generateCmd.Flags().StringVar(&flagUserInput, "user-input", "", "free-text guidance passed to the planner")
	generateCmd.Flags().IntVar(&flagMaxCapturedArrayLen, "max-captured-array-len", 10, "truncate captured response arrays longer than this")
	generateCmd.Flags().IntVar(&flagNegativeStatus, "negative-status-override", 400, "forced status code for negative scenarios")
	generateCmd.Flags().IntVar(&flagMaxWorkers, "max-workers", 10, "bounded concurrency for the planner's worker pool")
	generateCmd.Flags().StringVar(&flagEnvFile, "env-file", "", "optional .env file with LLM provider credentials")
	generateCmd.Flags().StringVar(&flagOutDir, "out-dir", ".", "parent directory for the run folder")
	generateCmd.Flags().StringVar(&flagRunOptionsFile, "run-options-file", "", "optional YAML file of default run options, overridden by any flag explicitly set")

	_ = generateCmd.MarkFlagRequired("base-url")
	_ = generateCmd.MarkFlagRequired("spec-path")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   func(cmd *cobra.Command, args []string) { fmt.Printf("oasforge %s\n", version) },
	})
}

func runGenerate(cmd *cobra.Command, args []string) error {
	started := time.Now()
	ctx := context.Background()

	content, err := os.ReadFile(flagSpecPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reading spec: %v\n", err)
		os.Exit(1)
	}

	spec, err := specmodel.Load(content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: spec invalid: %v\n", err)
		os.Exit(1)
	}

	oracleCfg, err := config.Load(flagEnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fileOpts, err := config.LoadRunOptionsFile(flagRunOptionsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	applyUnsetFlagsFromFile(cmd, fileOpts)

	transport, model := transportFrom(ctx, oracleCfg)
	if transport == nil {
		fmt.Fprintln(os.Stderr, "error: could not build an oracle transport from the configured provider")
		os.Exit(1)
	}

	accounting := oracle.NewAccounting(0, 0)
	o := oracle.New(transport, accounting)
	_ = model

	targets := make([]string, len(spec.Operations))
	for i, op := range spec.Operations {
		targets[i] = op.OpID
	}

	specName := baseName(flagSpecPath)
	folder, err := orchestrator.NewRunFolder(flagOutDir, specName, started.Format("20060102_150405"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	result, err := orchestrator.Run(ctx, spec, o, folder, orchestrator.Options{
		BaseURL:             flagBaseURL,
		Targets:             targets,
		UserGuidance:        flagUserInput,
		MaxWorkers:          flagMaxWorkers,
		MaxCapturedArrayLen: flagMaxCapturedArrayLen,
		NegativeOptions: negative.Options{
			Structural:  flagStructural,
			Functional:  flagFunctional,
			ForceStatus: flagNegativeStatus,
		},
		EnvInitScript: flagEnvInitScript,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	snapshot := accounting.Snapshot()
	summary := orchestrator.BuildSummary(orchestrator.RunStats{
		SuccessfulOperations: result.Stats.SuccessfulOperations,
		ServerErrors:         result.Stats.ServerErrors,
		TotalTests:           result.Stats.TotalTests,
		FailedTests:          result.Stats.FailedTests,
		TotalTokens:          snapshot.TotalTokens,
		TotalCost:            snapshot.CostUSD,
	}, time.Since(started))

	if err := folder.WriteResultsSummary(summary); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return orchestrator.WriteStdoutSummary(os.Stdout, summary)
}

// applyUnsetFlagsFromFile overlays opts onto any generate flag the user
// did not explicitly pass, so a --run-options-file sets defaults without
// ever shadowing an explicit CLI flag.
func applyUnsetFlagsFromFile(cmd *cobra.Command, opts config.RunOptions) {
	flags := cmd.Flags()
	if !flags.Changed("base-url") && opts.BaseURL != "" {
		flagBaseURL = opts.BaseURL
	}
	if !flags.Changed("spec-path") && opts.SpecPath != "" {
		flagSpecPath = opts.SpecPath
	}
	if !flags.Changed("structural") {
		flagStructural = opts.Structural
	}
	if !flags.Changed("functional") {
		flagFunctional = opts.Functional
	}
	if !flags.Changed("env-init-script") && opts.EnvInitScript != "" {
		flagEnvInitScript = opts.EnvInitScript
	}
	if !flags.Changed("user-input") && opts.UserInput != "" {
		flagUserInput = opts.UserInput
	}
	if !flags.Changed("max-captured-array-len") && opts.MaxCapturedArrayLen != 0 {
		flagMaxCapturedArrayLen = opts.MaxCapturedArrayLen
	}
	if !flags.Changed("negative-status-override") && opts.NegativeStatusOverride != 0 {
		flagNegativeStatus = opts.NegativeStatusOverride
	}
	if !flags.Changed("max-workers") && opts.MaxWorkers != 0 {
		flagMaxWorkers = opts.MaxWorkers
	}
}

func transportFrom(ctx context.Context, cfg *config.OracleConfig) (oracle.Transport, string) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		t, err := oracle.NewGenAITransport(ctx, cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, ""
		}
		return t, cfg.OpenAIModel
	case config.ProviderAzureOpenAI:
		t, err := oracle.NewGenAITransport(ctx, cfg.AzureAPIKey, cfg.AzureDeployment)
		if err != nil {
			return nil, ""
		}
		return t, cfg.AzureDeployment
	default:
		return nil, ""
	}
}

func baseName(path string) string {
	name := path
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' || name[i] == '\\' {
			name = name[i+1:]
			break
		}
	}
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
