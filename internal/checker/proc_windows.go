//go:build windows

package checker

import (
	"context"
	"os/exec"
)

// runProcess starts cmd and kills it when ctx is done. Windows has no
// process groups here; detached descendants may survive.
func runProcess(ctx context.Context, cmd *exec.Cmd) error {
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
			_ = cmd.Process.Kill()
		}
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
