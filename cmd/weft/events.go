package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/config"
	"github.com/steveyegge/weft/internal/events"
	"github.com/steveyegge/weft/internal/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events [issue]",
	Short: "Show the audit log",
	Long: `Show the audit log of one issue, or of every issue.

With --follow, keep printing new events as they are written. With --nats,
follow the events published to the configured NATS server instead of the
local log; this sees changes made from other machines.`,
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		follow, _ := cmd.Flags().GetBool("follow")
		fromNATS, _ := cmd.Flags().GetBool("nats")
		limit, _ := cmd.Flags().GetInt("limit")

		id := ""
		if len(args) == 1 {
			id = args[0]
		}

		if fromNATS {
			if err := followNATS(id); err != nil {
				fatal(err)
			}
			return
		}

		evs, err := svc.Events(rootCtx, id)
		if err != nil {
			fatal(err)
		}
		if limit > 0 && len(evs) > limit {
			evs = evs[len(evs)-limit:]
		}

		if !follow {
			if jsonOutput {
				if evs == nil {
					evs = []*types.Event{}
				}
				outputJSON(evs)
				return
			}
			if len(evs) == 0 {
				fmt.Println("No events")
				return
			}
			for _, e := range evs {
				fmt.Println(formatEvent(e))
			}
			return
		}

		seen := make(map[string]bool)
		emitNew := func(evs []*types.Event) {
			for _, e := range evs {
				if seen[e.ID] {
					continue
				}
				seen[e.ID] = true
				printStreamedEvent(e)
			}
		}
		emitNew(evs)
		err = onControlDirChange(rootCtx, func() {
			evs, err := svc.Events(rootCtx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}
			emitNew(evs)
		})
		if err != nil {
			fatal(err)
		}
	},
}

// printStreamedEvent prints one event; JSON output is one object per line.
func printStreamedEvent(e *types.Event) {
	if jsonOutput {
		_ = json.NewEncoder(os.Stdout).Encode(e)
		return
	}
	fmt.Println(formatEvent(e))
}

func followNATS(issueID string) error {
	url := config.GetString("nats.url")
	if local := config.LoadLocalConfigWithEnv(controlDir); local.NATS.URL != "" {
		url = local.NATS.URL
	}
	if url == "" {
		return fmt.Errorf("no NATS server configured (set nats.url)")
	}
	sub, err := events.NewNATSSubscriber(url)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	msgs, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Fprintf(os.Stderr, "Following %s on %s (Press Ctrl+C to exit)\n", events.TopicAll, url)
	for {
		select {
		case <-rootCtx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if m.Event == nil || (issueID != "" && m.Event.IssueID != issueID) {
				continue
			}
			printStreamedEvent(m.Event)
		}
	}
}

func init() {
	eventsCmd.Flags().BoolP("follow", "f", false, "Keep printing new events")
	eventsCmd.Flags().Bool("nats", false, "Follow events published to NATS")
	eventsCmd.Flags().IntP("limit", "n", 0, "Show only the last N events")
	rootCmd.AddCommand(eventsCmd)
}
