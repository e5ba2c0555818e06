package cmd

import (
	"github.com/spf13/cobra"

	"stlcrunch.dev/pkg/stlcrunch/internal/controller"
	"stlcrunch.dev/pkg/stlcrunch/internal/domain"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [sources...]",
		Short: "List STL sources and candidate counts",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := surveySources(args)
			if err != nil {
				return err
			}

			controller.NewSimpleUI(cmd).DisplaySurvey(cmd.Context(), rows)

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// surveySources loads the sources and counts candidate lines per file,
// without touching the external flow.
func surveySources(args []string) ([]controller.SurveyRow, error) {
	sources, err := sourcesFromConfig(args)
	if err != nil {
		return nil, err
	}

	mnemonicsPath, err := mnemonicsFromConfig()
	if err != nil {
		return nil, err
	}

	mnemonics, err := sourceFS.LoadMnemonics(mnemonicsPath)
	if err != nil {
		return nil, err
	}

	files, err := sourceFS.LoadSources(sources)
	if err != nil {
		return nil, err
	}

	program, err := domain.NewProgram(files)
	if err != nil {
		return nil, err
	}

	perFile := make(map[int]int)
	for _, id := range program.Candidates(mnemonics) {
		perFile[id.File]++
	}

	rows := make([]controller.SurveyRow, 0, len(files))
	for i, file := range program.Files() {
		rows = append(rows, controller.SurveyRow{
			File:       file.Path,
			Lines:      len(file.Lines),
			Candidates: perFile[i],
		})
	}

	return rows, nil
}
