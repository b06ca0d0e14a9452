package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"dailycast/internal/queue"
)

type itemListResponse struct {
	Items []queue.Item `json:"items"`
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a video link for publishing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var item queue.Item
			if err := ctx.call(http.MethodPost, "/api/items", map[string]string{"url": args[0]}, &item); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued #%d: %s (%s)\n", item.ID, item.Title, formatDuration(item.DurationSeconds))
			return nil
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the publishing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueSwapCommand(ctx))
	queueCmd.AddCommand(newQueueEditCommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued items in publish order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload itemListResponse
			if err := ctx.get("/api/items", &payload); err != nil {
				return err
			}
			if len(payload.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}

			rows := make([][]string, 0, len(payload.Items))
			for pos, item := range payload.Items {
				rows = append(rows, []string{
					strconv.Itoa(pos + 1),
					strconv.FormatInt(item.ID, 10),
					string(item.Status),
					item.Title,
					formatDuration(item.DurationSeconds),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "ID", "Status", "Title", "Duration"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a queued item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.call(http.MethodDelete, fmt.Sprintf("/api/items/%d", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed item %d.\n", id)
			return nil
		},
	}
}

func newQueueSwapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "swap <id> <id>",
		Short: "Swap the positions of two queued items",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			b, err := parseItemID(args[1])
			if err != nil {
				return err
			}
			if err := ctx.call(http.MethodPost, "/api/items/swap", map[string]int64{"a": a, "b": b}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Swapped items %d and %d.\n", a, b)
			return nil
		},
	}
}

func newQueueEditCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var thumbMode string
	var thumbRef string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit the metadata of a queued item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}

			patch := map[string]string{}
			if cmd.Flags().Changed("title") {
				patch["title"] = title
			}
			if cmd.Flags().Changed("description") {
				patch["description"] = description
			}
			if cmd.Flags().Changed("thumb-mode") {
				patch["thumb_mode"] = thumbMode
				patch["thumb_ref"] = thumbRef
			}
			if len(patch) == 0 {
				return fmt.Errorf("nothing to change; pass --title, --description, or --thumb-mode")
			}

			var item queue.Item
			if err := ctx.call(http.MethodPatch, fmt.Sprintf("/api/items/%d", id), patch, &item); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated item %d: %s\n", item.ID, item.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&thumbMode, "thumb-mode", "", "Thumbnail mode (source or custom)")
	cmd.Flags().StringVar(&thumbRef, "thumb-ref", "", "Path to a custom thumbnail image")

	return cmd
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently published items",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload itemListResponse
			if err := ctx.get(fmt.Sprintf("/api/history?limit=%d", limit), &payload); err != nil {
				return err
			}
			if len(payload.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing published yet.")
				return nil
			}

			rows := make([][]string, 0, len(payload.Items))
			for _, item := range payload.Items {
				published := ""
				if item.PublishedAt != nil {
					published = item.PublishedAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.Title,
					item.RemoteID,
					published,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Remote ID", "Published"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")

	return cmd
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("item id must be a positive integer, got %q", raw)
	}
	return id, nil
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	minutes := seconds / 60
	if minutes >= 60 {
		return fmt.Sprintf("%d:%02d:%02d", minutes/60, minutes%60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds%60)
}
