package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"stlcrunch.dev/pkg/stlcrunch/internal/adapter"
	"stlcrunch.dev/pkg/stlcrunch/internal/controller"
	"stlcrunch.dev/pkg/stlcrunch/internal/domain"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
	"stlcrunch.dev/pkg/stlcrunch/pkg"
)

var runAlgorithmFlag string
var runPolicyFlag string
var runSegmentFlag int
var runRestorationFlag string
var runSeedFlag int64

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [sources...]",
		Short: "Run one STL compaction",
		Long:  runLongDescription,
		RunE:  runCompaction,
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&runAlgorithmFlag, algorithmFlagName, "a", viper.GetString(runAlgorithmKey), "compaction algorithm (a0 or a1xx)")
	bindFlagToConfig(cmd.Flags().Lookup(algorithmFlagName), runAlgorithmKey)

	cmd.Flags().StringVar(&runPolicyFlag, policyFlagName, viper.GetString(runPolicyKey), "acceptance policy (maximize or threshold)")
	bindFlagToConfig(cmd.Flags().Lookup(policyFlagName), runPolicyKey)

	cmd.Flags().IntVar(&runSegmentFlag, segmentFlagName, viper.GetInt(runSegmentKey), "segment dimension for a1xx")
	bindFlagToConfig(cmd.Flags().Lookup(segmentFlagName), runSegmentKey)

	cmd.Flags().StringVar(&runRestorationFlag, restorationFlagName, viper.GetString(runRestorationKey), "restoration order for a1xx (F, B or R)")
	bindFlagToConfig(cmd.Flags().Lookup(restorationFlagName), runRestorationKey)

	cmd.Flags().Int64Var(&runSeedFlag, seedFlagName, viper.GetInt64(runSeedKey), "seed for the random restoration order")
	bindFlagToConfig(cmd.Flags().Lookup(seedFlagName), runSeedKey)
}

func runCompaction(cmd *cobra.Command, args []string) error {
	compactArgs, err := compactArgsFromConfig(args)
	if err != nil {
		return err
	}

	pipeline, err := pipelineFromConfig()
	if err != nil {
		return err
	}

	coverage, err := coverageFromConfig()
	if err != nil {
		return err
	}

	evaluator, err := adapter.NewProcessEvaluator(pkg.NewShell(), coverage, pipeline)
	if err != nil {
		return err
	}

	interactive := controller.IsTTY(os.Stdout) && !viper.GetBool(noTUIFlagName)
	ui := controller.NewUI(cmd, interactive)

	flow := domain.NewWorkflow(sourceFS, evaluator, adapter.NewCSVStats(), summaryStore, ui, runIDs)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ui.Start(ctx); err != nil {
		return err
	}

	// The UI pumps events on one goroutine while the workflow drives the
	// compaction on another; closing the UI releases the pump.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return ui.Pump(egCtx)
	})

	eg.Go(func() error {
		defer ui.Close(egCtx)

		_, err := flow.Compact(egCtx, compactArgs)

		return err
	})

	return eg.Wait()
}

// sourcesFromConfig resolves the STL source list: positional arguments win,
// otherwise [sources].paths.
func sourcesFromConfig(args []string) ([]m.Path, error) {
	if len(args) > 0 {
		return parsePaths(args), nil
	}

	configured, err := expandedStringSlice(sourcesPathsKey)
	if err != nil {
		return nil, err
	}

	return parsePaths(configured), nil
}

// mnemonicsFromConfig resolves the mandatory mnemonic file path.
func mnemonicsFromConfig() (m.Path, error) {
	mnemonics, err := expandedString(sourcesMnemonicsKey)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(mnemonics) == "" {
		return "", m.NewConfigurationError("mnemonic file is required ([sources].mnemonics)")
	}

	return m.Path(mnemonics), nil
}

// compactArgsFromConfig assembles the run arguments from config, environment
// and flags. Positional arguments override the configured source list.
func compactArgsFromConfig(args []string) (domain.CompactArgs, error) {
	sources, err := sourcesFromConfig(args)
	if err != nil {
		return domain.CompactArgs{}, err
	}

	mnemonics, err := mnemonicsFromConfig()
	if err != nil {
		return domain.CompactArgs{}, err
	}

	algorithm, err := m.ParseAlgorithm(viper.GetString(runAlgorithmKey))
	if err != nil {
		return domain.CompactArgs{}, err
	}

	policy, err := m.ParseAcceptancePolicy(viper.GetString(runPolicyKey))
	if err != nil {
		return domain.CompactArgs{}, err
	}

	restoration, err := m.ParseRestorationOrder(viper.GetString(runRestorationKey))
	if err != nil {
		return domain.CompactArgs{}, err
	}

	outDir, err := expandedString(outputDirKey)
	if err != nil {
		return domain.CompactArgs{}, err
	}

	copyTo, err := expandedString(outputCopySourcesKey)
	if err != nil {
		return domain.CompactArgs{}, err
	}

	return domain.CompactArgs{
		Sources:          sources,
		Mnemonics:        mnemonics,
		Algorithm:        algorithm,
		Policy:           policy,
		SegmentDimension: viper.GetInt(runSegmentKey),
		Restoration:      restoration,
		Seed:             viper.GetInt64(runSeedKey),
		FailureCeiling:   viper.GetInt(runFailureCeilingKey),
		OutDir:           m.Path(outDir),
		CopySourcesTo:    m.Path(copyTo),
	}, nil
}

// pipelineFromConfig assembles the external flow description. Placeholders
// expand inside instructions; success/TaT/allow patterns are taken verbatim
// so regex metacharacters never collide with the placeholder syntax.
func pipelineFromConfig() (adapter.PipelineConfig, error) {
	compile, err := expandedStringSlice(evaluatorCompileKey)
	if err != nil {
		return adapter.PipelineConfig{}, err
	}

	lsim, err := expandedStringSlice(evaluatorLogicSimKey)
	if err != nil {
		return adapter.PipelineConfig{}, err
	}

	fsim, err := expandedStringSlice(evaluatorFaultSimKey)
	if err != nil {
		return adapter.PipelineConfig{}, err
	}

	return adapter.PipelineConfig{
		CompileInstructions: compile,
		CompileTimeout:      secondsToDuration(viper.GetFloat64(evaluatorCompileTimeoutKey)),
		LSimInstructions:    lsim,
		LSimTimeout:         secondsToDuration(viper.GetFloat64(evaluatorLSimTimeoutKey)),
		SuccessPattern:      viper.GetString(evaluatorSuccessPatternKey),
		TaTPattern:          viper.GetString(evaluatorTaTPatternKey),
		FSimInstructions:    fsim,
		FSimTimeout:         secondsToDuration(viper.GetFloat64(evaluatorFSimTimeoutKey)),
		AllowPatterns:       viper.GetStringSlice(evaluatorAllowPatternsKey),
	}, nil
}

// coverageFromConfig picks and validates the coverage source.
func coverageFromConfig() (adapter.CoverageSource, error) {
	source := strings.ToLower(strings.TrimSpace(viper.GetString(coverageSourceKey)))

	switch source {
	case coverageSourceSummaryCell:
		path, err := expandedString(coverageSummaryPathKey)
		if err != nil {
			return nil, err
		}

		return adapter.NewSummaryCellSource(adapter.SummaryCellConfig{
			Path: m.Path(path),
			Row:  viper.GetInt(coverageSummaryRowKey),
			Col:  viper.GetInt(coverageSummaryColKey),
		})
	case coverageSourceStatusFormula:
		path, err := expandedString(coverageFaultListKey)
		if err != nil {
			return nil, err
		}

		return adapter.NewStatusFormulaSource(adapter.StatusFormulaConfig{
			Path:            m.Path(path),
			StatusAttribute: viper.GetString(coverageStatusAttributeKey),
			Groups:          viper.GetStringMapStringSlice(coverageGroupsKey),
			Expression:      viper.GetString(coverageFormulaKey),
		})
	default:
		return nil, m.NewConfigurationError("unknown coverage source %q (want %s or %s)",
			source, coverageSourceSummaryCell, coverageSourceStatusFormula)
	}
}

// secondsToDuration converts a config timeout in seconds; zero disables the
// deadline.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
