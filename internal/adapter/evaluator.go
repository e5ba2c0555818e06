package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
	"stlcrunch.dev/pkg/stlcrunch/pkg"
)

// Evaluator is the measurement contract against the external simulation
// flow. The compaction core consumes it and never looks behind it: one call
// sequence per candidate program state, each phase reporting how far the
// flow got and what it measured.
type Evaluator interface {
	// Compile assembles the current on-disk program.
	Compile(ctx context.Context) m.EvaluationResult

	// LogicSimulate runs the logic simulation and extracts the test
	// application time from its stdout.
	LogicSimulate(ctx context.Context) m.EvaluationResult

	// FaultSimulate runs the fault simulation.
	FaultSimulate(ctx context.Context) m.EvaluationResult

	// Coverage reads the fault coverage produced by the last fault
	// simulation from the flow's report files.
	Coverage() (float64, error)
}

// PipelineConfig describes one external flow: the shell instructions of each
// phase, their deadlines, and the output shapes that define success.
//
// SuccessPattern and TaTPattern both have to match the logic simulation
// stdout for the phase to count as successful; TaTPattern must carry exactly
// one capture group holding the test application time. AllowPatterns name
// fault simulation stderr lines that are noise rather than failures.
type PipelineConfig struct {
	CompileInstructions []string
	CompileTimeout      time.Duration

	LSimInstructions []string
	LSimTimeout      time.Duration
	SuccessPattern   string
	TaTPattern       string

	FSimInstructions []string
	FSimTimeout      time.Duration
	AllowPatterns    []string
}

// ProcessEvaluator drives the external flow through a Shell. It holds no
// per-candidate state; every call operates on whatever program is on disk.
type ProcessEvaluator struct {
	shell    pkg.Shell
	coverage CoverageSource

	compileInstructions []string
	compileTimeout      time.Duration

	lsimInstructions []string
	lsimTimeout      time.Duration
	success          *regexp.Regexp
	tat              *regexp.Regexp

	fsimInstructions []string
	fsimTimeout      time.Duration
	allow            []*regexp.Regexp
}

// NewProcessEvaluator validates cfg and builds a ProcessEvaluator. Missing
// instructions, unparsable patterns, or a TaT pattern without exactly one
// capture group are configuration errors, surfaced here rather than at the
// first candidate.
func NewProcessEvaluator(shell pkg.Shell, coverage CoverageSource, cfg PipelineConfig) (*ProcessEvaluator, error) {
	if len(cfg.CompileInstructions) == 0 {
		return nil, m.NewConfigurationError("evaluator: no compile instructions")
	}

	if len(cfg.LSimInstructions) == 0 {
		return nil, m.NewConfigurationError("evaluator: no logic simulation instructions")
	}

	if len(cfg.FSimInstructions) == 0 {
		return nil, m.NewConfigurationError("evaluator: no fault simulation instructions")
	}

	if strings.TrimSpace(cfg.SuccessPattern) == "" {
		return nil, m.NewConfigurationError("evaluator: success pattern is required")
	}

	success, err := regexp.Compile(cfg.SuccessPattern)
	if err != nil {
		return nil, m.WrapConfigurationError(err, "evaluator: bad success pattern %q", cfg.SuccessPattern)
	}

	if strings.TrimSpace(cfg.TaTPattern) == "" {
		return nil, m.NewConfigurationError("evaluator: tat pattern is required")
	}

	tat, err := regexp.Compile(cfg.TaTPattern)
	if err != nil {
		return nil, m.WrapConfigurationError(err, "evaluator: bad tat pattern %q", cfg.TaTPattern)
	}

	if tat.NumSubexp() != 1 {
		return nil, m.NewConfigurationError("evaluator: tat pattern %q needs exactly one capture group, has %d", cfg.TaTPattern, tat.NumSubexp())
	}

	allow := make([]*regexp.Regexp, 0, len(cfg.AllowPatterns))

	for _, p := range cfg.AllowPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, m.WrapConfigurationError(err, "evaluator: bad allow pattern %q", p)
		}

		allow = append(allow, re)
	}

	return &ProcessEvaluator{
		shell:               shell,
		coverage:            coverage,
		compileInstructions: cfg.CompileInstructions,
		compileTimeout:      cfg.CompileTimeout,
		lsimInstructions:    cfg.LSimInstructions,
		lsimTimeout:         cfg.LSimTimeout,
		success:             success,
		tat:                 tat,
		fsimInstructions:    cfg.FSimInstructions,
		fsimTimeout:         cfg.FSimTimeout,
		allow:               allow,
	}, nil
}

// Compile runs the compile instructions. Any stderr output or non-zero exit
// marks the candidate as non-assembling.
func (e *ProcessEvaluator) Compile(ctx context.Context) m.EvaluationResult {
	for _, instruction := range e.compileInstructions {
		res, err := e.shell.Run(ctx, instruction, e.compileTimeout)
		if err != nil {
			return failure(m.PhaseCompile, m.StatusCompileError, "compile: %v", err)
		}

		if res.TimedOut {
			return failure(m.PhaseCompile, m.StatusTimeout, "compile timed out: %s", instruction)
		}

		if strings.TrimSpace(res.Stderr) != "" || res.ExitCode != 0 {
			return failure(m.PhaseCompile, m.StatusCompileError, "compile failed (exit %d): %s", res.ExitCode, firstLine(res.Stderr))
		}
	}

	return m.EvaluationResult{Status: m.StatusSuccess, Phase: m.PhaseCompile}
}

// LogicSimulate runs the logic simulation instructions and extracts the TaT
// from their combined stdout. Both the success pattern and the TaT pattern
// must match or the phase fails.
func (e *ProcessEvaluator) LogicSimulate(ctx context.Context) m.EvaluationResult {
	var stdout strings.Builder

	for _, instruction := range e.lsimInstructions {
		res, err := e.shell.Run(ctx, instruction, e.lsimTimeout)
		if err != nil {
			return failure(m.PhaseLogicSim, m.StatusSimulationError, "logic simulation: %v", err)
		}

		if res.TimedOut {
			return failure(m.PhaseLogicSim, m.StatusTimeout, "logic simulation timed out: %s", instruction)
		}

		if strings.TrimSpace(res.Stderr) != "" || res.ExitCode != 0 {
			return failure(m.PhaseLogicSim, m.StatusSimulationError, "logic simulation failed (exit %d): %s", res.ExitCode, firstLine(res.Stderr))
		}

		stdout.WriteString(res.Stdout)
	}

	output := stdout.String()

	if !e.success.MatchString(output) {
		return failure(m.PhaseLogicSim, m.StatusSimulationError, "logic simulation output did not match success pattern %q", e.success)
	}

	match := e.tat.FindStringSubmatch(output)
	if match == nil {
		return failure(m.PhaseLogicSim, m.StatusSimulationError, "logic simulation output did not match tat pattern %q", e.tat)
	}

	tat, err := strconv.ParseFloat(strings.TrimSpace(match[1]), 64)
	if err != nil {
		return failure(m.PhaseLogicSim, m.StatusSimulationError, "tat capture %q is not numeric", match[1])
	}

	return m.EvaluationResult{
		Status:   m.StatusSuccess,
		Phase:    m.PhaseLogicSim,
		TaT:      tat,
		TaTValid: true,
	}
}

// FaultSimulate runs the fault simulation instructions. Stderr lines that
// match an allow pattern are tolerated; anything else fails the phase.
func (e *ProcessEvaluator) FaultSimulate(ctx context.Context) m.EvaluationResult {
	for _, instruction := range e.fsimInstructions {
		res, err := e.shell.Run(ctx, instruction, e.fsimTimeout)
		if err != nil {
			return failure(m.PhaseFaultSim, m.StatusSimulationError, "fault simulation: %v", err)
		}

		if res.TimedOut {
			return failure(m.PhaseFaultSim, m.StatusTimeout, "fault simulation timed out: %s", instruction)
		}

		if offending := e.firstDisallowedLine(res.Stderr); offending != "" {
			return failure(m.PhaseFaultSim, m.StatusSimulationError, "fault simulation stderr: %s", offending)
		}

		if res.ExitCode != 0 {
			return failure(m.PhaseFaultSim, m.StatusSimulationError, "fault simulation failed (exit %d)", res.ExitCode)
		}
	}

	return m.EvaluationResult{Status: m.StatusSuccess, Phase: m.PhaseFaultSim}
}

// Coverage reads the fault coverage from the configured source.
func (e *ProcessEvaluator) Coverage() (float64, error) {
	return e.coverage.Coverage()
}

func (e *ProcessEvaluator) firstDisallowedLine(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !e.allowed(line) {
			return line
		}
	}

	return ""
}

func (e *ProcessEvaluator) allowed(line string) bool {
	for _, re := range e.allow {
		if re.MatchString(line) {
			return true
		}
	}

	return false
}

func failure(phase m.Phase, status m.EvalStatus, format string, args ...any) m.EvaluationResult {
	diagnostic := fmt.Sprintf(format, args...)
	slog.Debug("evaluation phase failed", "phase", phase, "status", status.String(), "diagnostic", diagnostic)

	return m.EvaluationResult{Status: status, Phase: phase, Diagnostic: diagnostic}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}

	return s
}
