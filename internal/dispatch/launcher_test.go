//go:build unix

package dispatch

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/weft/internal/types"
)

func TestLauncherRunsWorkerCommand(t *testing.T) {
	var out bytes.Buffer
	l := &Launcher{Output: &out}
	issue := &types.Issue{ID: "wf-a", Title: "launch me"}

	l.Launch(context.Background(), types.Worker{ID: "w1", Command: `echo "$WEFT_WORKER_ID $WEFT_ISSUE_ID"; cat`}, issue)
	l.Wait()

	assert.Contains(t, out.String(), "w1 wf-a")
	assert.Contains(t, out.String(), `"title":"launch me"`)

	// No command, no launch.
	l.Launch(context.Background(), types.Worker{ID: "w2"}, issue)
	l.Wait()
}
