package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stlcrunch.dev/pkg/stlcrunch/internal/adapter"
	"stlcrunch.dev/pkg/stlcrunch/internal/controller"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [run-dir]",
		Short: "View the summary of a previous compaction run",
		Long: `Render the stored summary of a run directory. Without an argument the
newest run under the output directory is shown (run IDs sort by start
time).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runDir m.Path

			if len(args) == 1 {
				runDir = m.Path(args[0])
			} else {
				latest, err := latestRunDir(m.Path(viper.GetString(outputDirKey)))
				if err != nil {
					return err
				}

				runDir = latest
			}

			summary, err := summaryStore.Load(runDir)
			if err != nil {
				return err
			}

			controller.NewSimpleUI(cmd).DisplaySummary(cmd.Context(), summary)

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

// latestRunDir picks the newest run under outDir. Run IDs are time-ordered
// UUIDs, so the lexically greatest directory holding a summary is the most
// recent run.
func latestRunDir(outDir m.Path) (m.Path, error) {
	entries, err := os.ReadDir(string(outDir))
	if err != nil {
		return "", fmt.Errorf("read output directory %s: %w", outDir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		runDir := filepath.Join(string(outDir), name)
		if _, err := os.Stat(filepath.Join(runDir, adapter.SummaryFileName)); err == nil {
			return m.Path(runDir), nil
		}
	}

	return "", fmt.Errorf("no run summaries under %s", outDir)
}
