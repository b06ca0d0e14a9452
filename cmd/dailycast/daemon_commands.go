package main

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type statusResponse struct {
	Running        bool             `json:"running"`
	QueueDBPath    string           `json:"queue_db_path"`
	LockFilePath   string           `json:"lock_file_path"`
	NextFire       time.Time        `json:"next_fire"`
	LastPublishDay string           `json:"last_publish_day"`
	QueuedItems    int              `json:"queued_items"`
	PendingChoices map[string][]int `json:"pending_choices"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status statusResponse
			if err := ctx.get("/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:        running\n")
			fmt.Fprintf(out, "Queue DB:      %s\n", status.QueueDBPath)
			fmt.Fprintf(out, "Queued items:  %d\n", status.QueuedItems)
			if !status.NextFire.IsZero() {
				fmt.Fprintf(out, "Next publish:  %s\n", status.NextFire.Format("2006-01-02 15:04 MST"))
			}
			if status.LastPublishDay != "" {
				fmt.Fprintf(out, "Last publish:  %s\n", status.LastPublishDay)
			}
			if len(status.PendingChoices) > 0 {
				fmt.Fprintln(out, "Waiting on quality choices:")
				ids := make([]string, 0, len(status.PendingChoices))
				for id := range status.PendingChoices {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					heights := make([]string, 0, len(status.PendingChoices[id]))
					for _, h := range status.PendingChoices[id] {
						heights = append(heights, fmt.Sprintf("%dp", h))
					}
					fmt.Fprintf(out, "  item %s: %s\n", id, strings.Join(heights, ", "))
				}
			}
			return nil
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var itemID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger a publish run immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]int64{}
			if itemID > 0 {
				body["id"] = itemID
			}
			if err := ctx.call(http.MethodPost, "/api/run", body, nil); err != nil {
				return err
			}
			if itemID > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Run started for item %d.\n", itemID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Run started.")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&itemID, "id", 0, "Process a specific item instead of the queue head")

	return cmd
}

func newChooseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "choose <id> <height>",
		Short: "Answer a pending quality question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			height, err := strconv.Atoi(strings.TrimSuffix(args[1], "p"))
			if err != nil || height <= 0 {
				return fmt.Errorf("height must be a positive number of pixels, got %q", args[1])
			}
			path := fmt.Sprintf("/api/items/%d/quality", id)
			if err := ctx.callRaw(http.MethodPost, path, strconv.Itoa(height), nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d will be fetched at %dp.\n", id, height)
			return nil
		},
	}
}

func newSetTimeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-time <HH:MM>",
		Short: "Change the daily publish time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.call(http.MethodPut, "/api/settings/publish-time", map[string]string{"time": args[0]}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daily publish time set to %s.\n", args[0])
			return nil
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Sent   bool   `json:"sent"`
				Detail string `json:"detail"`
			}
			if err := ctx.call(http.MethodPost, "/api/notify/test", nil, &result); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Detail)
			return nil
		},
	}
}
