package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon instance",
	Long: `Stop a depositsvc daemon started with 'depositsvc start' (background mode).

Sends SIGTERM to the process named in the PID file and waits briefly for it
to exit gracefully.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/depositsvc/depositsvc.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Skip confirmation prompt")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		return fmt.Errorf("no running instance found (%s): %w", pidPath, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("invalid PID file %s: %w", pidPath, err)
	}

	if !stopForce {
		confirmed, err := confirmStop(pid)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to locate process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	for i := 0; i < 50; i++ {
		if process.Signal(syscall.Signal(0)) != nil {
			fmt.Printf("Stopped depositsvc (PID %d)\n", pid)
			_ = os.Remove(pidPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("process %d did not exit within 5s", pid)
}

// confirmStop asks the operator to confirm before signaling a running daemon.
func confirmStop(pid int) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Stop depositsvc (PID %d)? [y/N]", pid),
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		if err == promptui.ErrInterrupt {
			return false, nil
		}
		return false, err
	}

	return strings.ToLower(result) == "y" || strings.ToLower(result) == "yes", nil
}
