package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/dmd-downloader/internal/config"
)

var (
	// overwriteConfig allows config init to replace an existing file.
	overwriteConfig bool

	// configCmd groups settings file helpers.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file.",
	}

	// configInitCmd writes the default settings.
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the default settings to the --config path.",
		Long: `Write the default settings (dm+d item 24, checksum download, extraction,
daily schedule at 06:00 Asia/Dhaka) to the file named by --config.
An existing file is kept unless --force is given. The API key is never written.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.Init(configPath, overwriteConfig)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	configInitCmd.Flags().BoolVarP(&overwriteConfig, "force", "f", false, "replace an existing settings file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
