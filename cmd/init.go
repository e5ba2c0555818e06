package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const starterMnemonicsName = "mnemonics.txt"

// starterConfig is written by "stlcrunch init": every knob with its default
// and a comment, so a new flow only needs the paths filled in. Kept as a
// literal instead of viper.SafeWriteConfigAs, which cannot emit comments.
const starterConfig = `# stlcrunch configuration. Every value can also come from the STLCRUNCH_*
# environment (STLCRUNCH_RUN_ALGORITHM overrides run.algorithm) or from
# command line flags.
version = 1

[sources]
# Ordered list of STL assembly files. Candidates are visited in this file
# order, top to bottom.
paths = ["stl/boot.s", "stl/alu.s"]
# One mnemonic per line; a line whose first token matches is a candidate.
mnemonics = "mnemonics.txt"

[run]
# a0 removes one line at a time; a1xx removes fixed-size segments and
# restores rejected ones line by line.
algorithm = "a0"
# maximize keeps only Pareto improvements over the current best; threshold
# keeps any deletion that does not slow the test while coverage stays at
# or above the baseline.
policy = "maximize"
# Segment size for a1xx. Segments never span file boundaries.
segment_dimension = 2
# Restoration order for a1xx: F (forward), B (backward) or R (random).
restoration = "F"
# Seed for the R restoration order.
seed = 0
# Abort after this many consecutive evaluation failures; 0 disables.
failure_ceiling = 5

[evaluator]
# Each phase is a list of shell instructions run in order. %name%
# placeholders expand from [defines].
compile = ["make -C %flow% compile"]
logic_sim = ["make -C %flow% lsim"]
fault_sim = ["make -C %flow% fsim"]
# Per-phase deadlines in seconds; 0 waits forever.
compile_timeout = 60.0
logic_sim_timeout = 240.0
fault_sim_timeout = 900.0
# Logic simulation stdout must match both patterns; the capture group in
# tat_pattern holds the test application time.
success_pattern = "TEST PASSED"
tat_pattern = "cycles=([0-9.]+)"
# Fault simulation stderr lines matching none of these fail the phase.
allow_patterns = ["^Warning", "^\\s*$"]

[coverage]
# summary_cell reads one cell of a CSV report; status_formula computes an
# expression over fault status counts.
source = "summary_cell"
summary_path = "%flow%/reports/summary.csv"
# 1-based position of the coverage cell.
summary_row = 2
summary_col = 3
# status_formula settings: the fault list CSV, the column holding each
# fault's status, and the expression over status counts.
fault_list = "%flow%/reports/faults.csv"
status_attribute = "status"
formula = "100 * DD / (DD + ND)"

[coverage.groups]
# Optional status groups usable as formula identifiers. The config loader
# lowercases group names, so write them lowercase in the formula too, e.g.
# det = ["DD", "DI"] with formula = "100 * det / (det + ND)".

[output]
# Run artifacts (stats.csv, summary.yaml, backup.zip) land here, one
# directory per run.
dir = ".stlcrunch"
# Optionally copy the compacted sources here as well; the originals are
# always rewritten in place.
copy_sources_to = ""

[defines]
# %flow% in any instruction or path expands to this value. Defines must
# not reference other defines.
flow = "./flow"

[log]
filename = ".stlcrunch.log"
level = "info"
`

const starterMnemonics = `# Instruction mnemonics whose lines are deletion candidates, one per line.
# Matching is case-sensitive against the first token of each line.
ADD
ADDI
AND
ANDI
BEQ
BNE
JAL
JALR
LW
NOP
OR
ORI
SLL
SRL
SUB
SW
XOR
XORI
`

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a starter stlcrunch.toml and mnemonic file",
		Long: `Create a commented stlcrunch.toml and an example mnemonic list in the
current working directory so they can be edited manually. Existing files
are left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath := filepath.Join(configFolderPath, configFileName)
			if err := writeScaffold(configPath, []byte(starterConfig)); err != nil {
				return err
			}

			cmd.Println("wrote", configPath)

			mnemonicsPath := filepath.Join(configFolderPath, starterMnemonicsName)
			if err := writeScaffold(mnemonicsPath, []byte(starterMnemonics)); err != nil {
				return err
			}

			cmd.Println("wrote", mnemonicsPath)

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// writeScaffold writes path unless something already lives there.
func writeScaffold(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}

	return os.WriteFile(path, content, 0o644)
}
