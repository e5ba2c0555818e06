package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Overridable at build time:
//
//	go build -ldflags "-X stlcrunch.dev/pkg/stlcrunch/cmd.version=v1.0.0"
var (
	version = ""
	commit  = ""
	date    = ""
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the build version and Go version used to build this tool.",
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()

			v := version
			if v == "" && ok && info.Main.Version != "" {
				v = info.Main.Version
			}

			if v == "" {
				cmd.Println("version: unknown")
				return
			}

			cmd.Println("tool version\t", v)

			if commit != "" {
				cmd.Println("commit\t\t", commit)
			}

			if date != "" {
				cmd.Println("built\t\t", date)
			}

			if ok {
				cmd.Println("go version\t", info.GoVersion)
			}
		},
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
