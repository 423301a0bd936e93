package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var userDataPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&userDataPath, "user-data", "",
		"Path to the user data file (default ~/.nbed/continuum/userdata.json)")
}

var rootCmd = &cobra.Command{
	Use:   "continuum",
	Short: "Continuum: rubric search index and assessment tooling",
}

// resolveUserDataPath applies the home-directory default when the flag is
// unset.
func resolveUserDataPath() (string, error) {
	if userDataPath != "" {
		return userDataPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, ".nbed", "continuum", "userdata.json"), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
