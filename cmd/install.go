package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the daemon as a user service",
	Long: `Install the daemon so it starts automatically on login.

On macOS this writes a launchd agent to ~/Library/LaunchAgents and
bootstraps it with launchctl. Elsewhere it writes a systemd user unit and
enables it with systemctl --user.`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	binaryPath, err = filepath.EvalSymlinks(binaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	logPath := daemon.DefaultLogPath()
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	svc, err := daemon.GenerateService(runtime.GOOS, daemon.ServiceConfig{
		BinaryPath:       binaryPath,
		LogPath:          logPath,
		WorkingDirectory: home,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(svc.Path), 0755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}

	cmds := serviceCommandsFor(runtime.GOOS, svc.Path)

	if _, err := os.Stat(svc.Path); err == nil {
		fmt.Fprintln(out, "Daemon is already installed. Reinstalling...")
		if err := runServiceCommands(cmds.unload); err != nil {
			fmt.Fprintf(out, "Warning: failed to stop existing daemon: %v\n", err)
		}
	}

	if err := os.WriteFile(svc.Path, []byte(svc.Contents), 0644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}
	fmt.Fprintf(out, "✓ Installed service definition to %s\n", svc.Path)

	if err := runServiceCommands(cmds.load); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Fprintln(out, "✓ Daemon loaded and started")
	fmt.Fprintf(out, "\nCheck on it with:\n  %s\n", cmds.status)
	fmt.Fprintln(out, "\nTo uninstall, run:\n  upnp-scribbles uninstall")
	return nil
}

// serviceCommands are the service manager invocations for one platform.
type serviceCommands struct {
	load   [][]string
	unload [][]string
	status string
}

func serviceCommandsFor(goos, path string) serviceCommands {
	if goos == "darwin" {
		domain := "gui/" + strconv.Itoa(os.Getuid())
		return serviceCommands{
			load:   [][]string{{"launchctl", "bootstrap", domain, path}},
			unload: [][]string{{"launchctl", "bootout", domain + "/" + daemon.ServiceLabel}},
			status: "launchctl print " + domain + "/" + daemon.ServiceLabel,
		}
	}

	unit := filepath.Base(path)
	return serviceCommands{
		load: [][]string{
			{"systemctl", "--user", "daemon-reload"},
			{"systemctl", "--user", "enable", "--now", unit},
		},
		unload: [][]string{
			{"systemctl", "--user", "disable", "--now", unit},
		},
		status: "systemctl --user status " + unit,
	}
}

func runServiceCommands(cmds [][]string) error {
	for _, args := range cmds {
		output, err := exec.Command(args[0], args[1:]...).CombinedOutput()
		if err != nil {
			if msg := strings.TrimSpace(string(output)); msg != "" {
				return fmt.Errorf("%s failed: %s", strings.Join(args, " "), msg)
			}
			return fmt.Errorf("%s failed: %w", strings.Join(args, " "), err)
		}
	}
	return nil
}
