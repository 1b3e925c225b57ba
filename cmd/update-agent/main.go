package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version  = "0.1.0"
	cfgFile  string
	appKeys  []string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "update-agent",
	Short: "Desktop application update agent",
	Long: `update-agent checks the release pages of configured desktop applications,
downloads the newest installers, closes the running applications and starts
the installers.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Update every enabled application",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runUpdates(cmd.Context()))
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show the latest release of each application without installing",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(checkVersions(cmd.Context()))
	},
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List configured applications",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(listApps())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("update-agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is update-agent.yaml next to the binary)")
	rootCmd.PersistentFlags().StringSliceVar(&appKeys, "app", nil, "only process the given application keys (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := notifyContext()
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
