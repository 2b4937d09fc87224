package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Clearner1/ZulipAgent/internal/fsstore"
	"github.com/Clearner1/ZulipAgent/internal/statepaths"
	"github.com/Clearner1/ZulipAgent/trigger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Deposit a trigger file into the watched directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			get := func(name string) string {
				v, _ := cmd.Flags().GetString(name)
				return strings.TrimSpace(v)
			}
			ev := trigger.Event{
				Type:     trigger.Type(get("type")),
				Stream:   get("stream"),
				Topic:    get("topic"),
				Text:     get("text"),
				At:       get("at"),
				Schedule: get("schedule"),
				Timezone: get("timezone"),
			}
			if err := ev.Validate(); err != nil {
				return err
			}

			name := get("file")
			if name == "" {
				name = uuid.NewString() + ".json"
			}
			if name != filepath.Base(name) {
				return fmt.Errorf("--file must be a bare filename, got %q", name)
			}
			path := filepath.Join(statepaths.TriggersDir(), name)
			if err := fsstore.WriteJSONAtomic(path, ev); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().String("type", string(trigger.TypeImmediate), "Trigger type: immediate|one-shot|periodic.")
	cmd.Flags().String("stream", "", "Target stream.")
	cmd.Flags().String("topic", "", "Target topic.")
	cmd.Flags().String("text", "", "Wake-up text handed to the agent.")
	cmd.Flags().String("at", "", "Fire time for one-shot triggers (RFC3339 with offset).")
	cmd.Flags().String("schedule", "", "Cron expression for periodic triggers (5 fields).")
	cmd.Flags().String("timezone", "", "IANA timezone for periodic triggers (e.g. America/New_York).")
	cmd.Flags().String("file", "", "Trigger filename (defaults to a random name).")

	return cmd
}
