package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "stlcrunch"
	configFileName   = configBaseName + ".toml"
	configFolderPath = "."

	configFlagName      = "config"
	outFlagName         = "out"
	noTUIFlagName       = "no-tui"
	algorithmFlagName   = "algorithm"
	policyFlagName      = "policy"
	segmentFlagName     = "segment"
	restorationFlagName = "restoration"
	seedFlagName        = "seed"

	sourcesPathsKey     = "sources.paths"
	sourcesMnemonicsKey = "sources.mnemonics"

	runAlgorithmKey      = "run.algorithm"
	runPolicyKey         = "run.policy"
	runSegmentKey        = "run.segment_dimension"
	runRestorationKey    = "run.restoration"
	runSeedKey           = "run.seed"
	runFailureCeilingKey = "run.failure_ceiling"

	evaluatorCompileKey        = "evaluator.compile"
	evaluatorLogicSimKey       = "evaluator.logic_sim"
	evaluatorFaultSimKey       = "evaluator.fault_sim"
	evaluatorCompileTimeoutKey = "evaluator.compile_timeout"
	evaluatorLSimTimeoutKey    = "evaluator.logic_sim_timeout"
	evaluatorFSimTimeoutKey    = "evaluator.fault_sim_timeout"
	evaluatorSuccessPatternKey = "evaluator.success_pattern"
	evaluatorTaTPatternKey     = "evaluator.tat_pattern"
	evaluatorAllowPatternsKey  = "evaluator.allow_patterns"

	coverageSourceKey          = "coverage.source"
	coverageSummaryPathKey     = "coverage.summary_path"
	coverageSummaryRowKey      = "coverage.summary_row"
	coverageSummaryColKey      = "coverage.summary_col"
	coverageFaultListKey       = "coverage.fault_list"
	coverageStatusAttributeKey = "coverage.status_attribute"
	coverageFormulaKey         = "coverage.formula"
	coverageGroupsKey          = "coverage.groups"

	coverageSourceSummaryCell   = "summary_cell"
	coverageSourceStatusFormula = "status_formula"

	outputDirKey         = "output.dir"
	outputCopySourcesKey = "output.copy_sources_to"

	definesKey = "defines"

	defaultAlgorithm        = "a0"
	defaultPolicy           = "maximize"
	defaultSegmentDimension = 2
	defaultRestoration      = "F"
	defaultFailureCeiling   = 5
	defaultOutDir           = ".stlcrunch"

	// Timeouts are seconds in config; zero disables the deadline.
	defaultCompileTimeout = 60.0
	defaultLSimTimeout    = 240.0
	defaultFSimTimeout    = 900.0

	envPrefix = "STLCRUNCH"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".stlcrunch.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

// configReadErr keeps the outcome of the initial config read so the root
// command can reject a present-but-broken file. A missing file is fine:
// defaults, flags and env still apply.
var configReadErr error

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("toml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(sourcesPathsKey, []string{})
	viper.SetDefault(sourcesMnemonicsKey, "")

	viper.SetDefault(runAlgorithmKey, defaultAlgorithm)
	viper.SetDefault(runPolicyKey, defaultPolicy)
	viper.SetDefault(runSegmentKey, defaultSegmentDimension)
	viper.SetDefault(runRestorationKey, defaultRestoration)
	viper.SetDefault(runSeedKey, int64(0))
	viper.SetDefault(runFailureCeilingKey, defaultFailureCeiling)

	viper.SetDefault(evaluatorCompileKey, []string{})
	viper.SetDefault(evaluatorLogicSimKey, []string{})
	viper.SetDefault(evaluatorFaultSimKey, []string{})
	viper.SetDefault(evaluatorCompileTimeoutKey, defaultCompileTimeout)
	viper.SetDefault(evaluatorLSimTimeoutKey, defaultLSimTimeout)
	viper.SetDefault(evaluatorFSimTimeoutKey, defaultFSimTimeout)
	viper.SetDefault(evaluatorSuccessPatternKey, "")
	viper.SetDefault(evaluatorTaTPatternKey, "")
	viper.SetDefault(evaluatorAllowPatternsKey, []string{})

	viper.SetDefault(coverageSourceKey, coverageSourceSummaryCell)
	viper.SetDefault(coverageSummaryPathKey, "")
	viper.SetDefault(coverageSummaryRowKey, 1)
	viper.SetDefault(coverageSummaryColKey, 1)
	viper.SetDefault(coverageFaultListKey, "")
	viper.SetDefault(coverageStatusAttributeKey, "")
	viper.SetDefault(coverageFormulaKey, "")

	viper.SetDefault(outputDirKey, defaultOutDir)
	viper.SetDefault(outputCopySourcesKey, "")

	viper.SetDefault(noTUIFlagName, false)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		// With an explicit SetConfigFile a missing file surfaces as
		// fs.ErrNotExist rather than viper's ConfigFileNotFoundError.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return
		}

		configReadErr = err
	}
}

// reloadConfig points viper at an explicit config file and re-reads it.
// Unlike the default search, an explicit file must exist and parse.
func reloadConfig(path string) error {
	viper.SetConfigFile(path)

	if err := viper.ReadInConfig(); err != nil {
		return m.WrapConfigurationError(err, "read config %s", path)
	}

	configReadErr = nil

	return nil
}

var placeholderPattern = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)

// expandPlaceholders substitutes %key% references against the [defines]
// table in one pass. Placeholder names are case-insensitive (viper
// lower-cases table keys). A define referencing another define, or a value
// referencing an unknown key, is a configuration error.
func expandPlaceholders(value string) (string, error) {
	defines := viper.GetStringMapString(definesKey)
	if len(defines) == 0 && !strings.Contains(value, "%") {
		return value, nil
	}

	for name, def := range defines {
		if inner := placeholderPattern.FindString(def); inner != "" {
			return "", m.NewConfigurationError("define %q references %s: recursive placeholders are not supported", name, inner)
		}
	}

	expanded := placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := strings.ToLower(match[1 : len(match)-1])
		if def, ok := defines[name]; ok {
			return def
		}

		return match
	})

	if leftover := placeholderPattern.FindString(expanded); leftover != "" {
		return "", m.NewConfigurationError("placeholder %s is not defined in [defines]", leftover)
	}

	return expanded, nil
}

// expandedString fetches a config string with placeholders resolved.
func expandedString(key string) (string, error) {
	return expandPlaceholders(viper.GetString(key))
}

// expandedStringSlice fetches a config string slice with placeholders
// resolved in every element.
func expandedStringSlice(key string) ([]string, error) {
	raw := viper.GetStringSlice(key)
	out := make([]string, 0, len(raw))

	for _, value := range raw {
		expanded, err := expandPlaceholders(value)
		if err != nil {
			return nil, err
		}

		out = append(out, expanded)
	}

	return out, nil
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
