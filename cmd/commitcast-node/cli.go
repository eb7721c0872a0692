package main

import (
    "fmt"
    "io"
    "strings"

    "github.com/spf13/cobra"

    "commitcast/pkg/event"
)

var version = "dev"

// Options holds CLI options shared by the subcommands.
type Options struct {
    ConfigPath string
}

// SendOptions describes the one-shot event built by the send command.
type SendOptions struct {
    Peers   string
    Port    int
    Kind    string
    Origin  string
    Added   []string
    Updated []string
    Deleted []string
    Types   []string
}

func (s SendOptions) Event() (event.Event, error) {
    ev := event.Event{Kind: event.Kind(strings.ToLower(s.Kind)), Origin: s.Origin, Added: s.Added, Updated: s.Updated, Deleted: s.Deleted}
    if ev.Kind == event.KindExtents { ev.UpdatedTypes = s.Types }
    if err := ev.Validate(); err != nil { return event.Event{}, err }
    if ev.Empty() { return event.Event{}, fmt.Errorf("%w: nothing to send", event.ErrInvalid) }
    return ev, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
    var opts Options
    root := &cobra.Command{
        Use:           "commitcast-node",
        Short:         "Broadcast commit notifications between cache peers over TCP",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    root.SetOut(out)
    root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")

    root.AddCommand(&cobra.Command{
        Use:   "run",
        Short: "Run a node until interrupted",
        Args:  cobra.NoArgs,
        RunE:  func(cmd *cobra.Command, _ []string) error { return runNode(cmd.Context(), opts) },
    })

    var so SendOptions
    send := &cobra.Command{
        Use:   "send",
        Short: "Broadcast a single commit notification and exit",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, _ []string) error {
            ev, err := so.Event()
            if err != nil { return err }
            n, err := sendOnce(opts, so, ev)
            if err != nil { return err }
            fmt.Fprintf(cmd.OutOrStdout(), "sent to %d peer(s)\n", n)
            return nil
        },
    }
    f := send.Flags()
    f.StringVar(&so.Peers, "peers", "", "Peers to send to, overriding broadcast.peers")
    f.IntVar(&so.Port, "port", 0, "Local port advertised as sender (0 picks a free port)")
    f.StringVar(&so.Kind, "kind", string(event.KindOIDs), "Payload kind: oids, oids-with-adds or extents")
    f.StringVar(&so.Origin, "origin", "", "Origin stamped on the event")
    f.StringSliceVar(&so.Added, "added", nil, "Added object ids")
    f.StringSliceVar(&so.Updated, "updated", nil, "Updated object ids")
    f.StringSliceVar(&so.Deleted, "deleted", nil, "Deleted object ids")
    f.StringSliceVar(&so.Types, "types", nil, "Changed type names for extents payloads")
    root.AddCommand(send)

    root.AddCommand(&cobra.Command{
        Use:   "version",
        Short: "Print the version",
        Args:  cobra.NoArgs,
        Run:   func(cmd *cobra.Command, _ []string) { fmt.Fprintln(cmd.OutOrStdout(), version) },
    })
    return root
}
