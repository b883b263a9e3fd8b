package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find media renderers on the local network",
	Long: `Run an SSDP search for UPnP MediaRenderer devices and list them.

Use the printed location as device.url (DEVICE_URL), or the UDN as
device.udn to have the daemon find the renderer again if its address
changes.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().Duration("timeout", 5*time.Second, "How long to wait for answers")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := renderer.Discover(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No renderers found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUDN\tLOCATION")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.FriendlyName, d.UDN, d.Location)
	}
	return w.Flush()
}
