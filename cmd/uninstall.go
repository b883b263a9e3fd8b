package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop the daemon and remove its user service",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		path, err := daemon.ServicePath(runtime.GOOS)
		if err != nil {
			return fmt.Errorf("failed to get service path: %w", err)
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintln(out, "Daemon is not installed (service definition not found)")
			return nil
		}

		fmt.Fprintln(out, "Stopping daemon...")
		if err := runServiceCommands(serviceCommandsFor(runtime.GOOS, path).unload); err != nil {
			fmt.Fprintf(out, "Warning: %v\n", err)
			fmt.Fprintln(out, "Continuing with removal...")
		} else {
			fmt.Fprintln(out, "✓ Daemon stopped")
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove service file: %w", err)
		}

		fmt.Fprintf(out, "✓ Removed %s\n", path)
		fmt.Fprintln(out, "\nThe daemon will no longer start on login. To reinstall, run:\n  upnp-scribbles install")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
