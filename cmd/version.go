package cmd

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	versionTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f59e0b"))
	versionDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionTitleStyle.Render("nexus " + BuildVersion))
		fmt.Println(versionDimStyle.Render(fmt.Sprintf("commit:  %s", BuildCommit)))
		fmt.Println(versionDimStyle.Render(fmt.Sprintf("built:   %s", BuildDate)))
		fmt.Println(versionDimStyle.Render(fmt.Sprintf("runtime: %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
