// Command svcwatchdog runs the watchdog supervisor: as a Windows service
// when launched by the Service Control Manager, or in the foreground
// otherwise.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "SvcWatchDog"
const serviceDisplayName = "SvcWatchDog Supervisor"

func main() {
	root := newRootCmd()
	// Cobra treats a leading "-i", "-u" or "-v" as a flag, never as a
	// subcommand alias, so the short forms are mapped to their
	// subcommands before execution.
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "-i":
			args = append([]string{"install"}, args[1:]...)
		case "-u":
			args = append([]string{"uninstall"}, args[1:]...)
		case "-v":
			args = append([]string{"status"}, args[1:]...)
		}
	}
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "svcwatchdog",
		Short:         "Supervise a child process as a Windows service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runService(configPath)
			os.Exit(code)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "svcwatchdog.json", "path to the configuration file")

	root.AddCommand(newInstallCmd(&configPath))
	root.AddCommand(newUninstallCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newProtectCmd())

	return root
}

func newInstallCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Aliases: []string{"-i"},
		Short:   "Install the supervisor as a Windows service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return installService(*configPath)
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Aliases: []string{"-u"},
		Short:   "Remove the supervisor's Windows service registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return uninstallService()
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"-v"},
		Short:   "Report whether the service is currently installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportInstalled()
		},
	}
}
