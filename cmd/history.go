package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/config"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scrobbles from the journal",
	Long: `List the most recent plays recorded in the scrobble journal, newest first.

Each row shows whether Last.fm accepted the scrobble. Failed rows are
resubmitted by the daemon while scrobble.retry_failed is enabled.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Number of rows to show")
	historyCmd.Flags().Bool("pending", false, "Only show scrobbles not yet accepted")
	historyCmd.Flags().String("data-dir", "", "Data directory the daemon writes to")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	pendingOnly, _ := cmd.Flags().GetBool("pending")

	dbPath := config.QueueDBPath()
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		dbPath = filepath.Join(dir, "queue.db")
	}

	queue, err := scrobbler.NewQueue(dbPath)
	if err != nil {
		return err
	}
	defer queue.Close()

	ctx := context.Background()
	var rows []scrobbler.QueuedScrobble
	if pendingOnly {
		rows, err = queue.GetPending(ctx, limit)
	} else {
		rows, err = queue.GetRecent(ctx, limit)
	}
	if err != nil {
		return err
	}

	total, err := queue.Count(ctx, true)
	if err != nil {
		return err
	}
	pending, err := queue.Count(ctx, false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	writeHistory(out, rows, time.Now())
	fmt.Fprintf(out, "\n%s journaled, %s pending\n", humanize.Comma(int64(total)), humanize.Comma(int64(pending)))
	return nil
}

func writeHistory(out io.Writer, rows []scrobbler.QueuedScrobble, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No scrobbles recorded yet.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTATUS\tARTIST\tTRACK\tALBUM")
	for _, row := range rows {
		status := "✓"
		if !row.Scrobbled {
			status = "pending"
			if row.Error != "" {
				status = "failed: " + row.Error
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.RelTime(row.Timestamp, now, "ago", "from now"),
			status, row.Artist, row.TrackName, row.Album)
	}
	w.Flush()
}
