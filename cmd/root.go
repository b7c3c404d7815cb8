// Package cmd is the nexus command line: serve, seed, create-admin and
// version.
package cmd

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/pkg/logger"
)

var (
	cfgFile string

	// Build metadata injected through ldflags.
	BuildVersion = "dev"
	BuildCommit  = "none"
	BuildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "NEXUS - dual-assistant training backend for roofing insurance reps",
	Long: `NEXUS runs the RoofDocs training backend: Susan answers insurance and
building-code questions with a knowledge base behind her, Agnes runs graded
roleplay training scenarios. One binary serves the API and manages the data.`,
}

// ExecuteCLI runs the root command with build metadata from ldflags.
func ExecuteCLI(version, commit, date string) {
	if version != "" {
		BuildVersion = version
	}
	if commit != "" {
		BuildCommit = commit
	}
	if date != "" {
		BuildDate = date
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./nexus.yml)")
}

// loadConfig reads the configuration and wires in build metadata.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = "./nexus.yml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Build = config.BuildConfig{
		Version: BuildVersion,
		Commit:  BuildCommit,
		Date:    BuildDate,
	}

	if cfg.App.Debug {
		logger.GetLogger().SetLogLevel("debug")
	}
	return cfg, nil
}
