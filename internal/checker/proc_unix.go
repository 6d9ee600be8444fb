//go:build unix

package checker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// runProcess starts cmd in its own process group and kills the whole group
// when ctx is done, so children spawned by the shell do not outlive it.
func runProcess(ctx context.Context, cmd *exec.Cmd) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
				<-done
				return fmt.Errorf("kill process group: %w", err)
			}
		}
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
