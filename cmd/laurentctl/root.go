package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/laurent-protocol/laurent-go/pkg/gateway"
	"github.com/laurent-protocol/laurent-go/pkg/lio"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		flags globalFlags
		a     *app
	)

	root := &cobra.Command{
		Use:           "laurentctl",
		Short:         "Control Laurent relay boards over the KE protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			a, err = newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	flags.register(root)

	// Subcommands reach the app through this getter; it is set by the
	// root pre-run hook.
	get := func() *app { return a }

	root.AddCommand(
		newPingCmd(get),
		newInfoCmd(get),
		newRelayCmd(get),
		newStatusCmd(get),
		newLineCmd(get),
		newWatchCmd(get),
		newShellCmd(get),
		newDiscoverCmd(get),
		newSimulateCmd(get),
	)

	// The capture file is closed after every subcommand, failed or not.
	for _, c := range root.Commands() {
		run := c.RunE
		c.RunE = func(cmd *cobra.Command, args []string) error {
			return errors.Join(run(cmd, args), get().close())
		}
	}
	return root
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid id %q: want a positive number", s)
	}
	return uint32(v), nil
}

func newPingCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the controller answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			return a.withGateway(cmd.Context(), func(gw *gateway.StreamGateway) error {
				start := time.Now()
				if err := gw.Ping(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "pong from %s in %s\n", gw.Session().RemoteAddr(), time.Since(start).Round(time.Microsecond))
				return nil
			})
		},
	}
}

func newInfoCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the module name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			return a.withGateway(cmd.Context(), func(gw *gateway.StreamGateway) error {
				name, err := gw.Info(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, name)
				return nil
			})
		},
	}
}

func newRelayCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "relay <id> <on|off|toggle|click|pulse> [delay]",
		Short: "Switch a relay",
		Long: `Switch a relay.

click takes the device delay: ".N" tenths of a second or "N" seconds.
pulse takes a Go duration and switches the relay off from this side.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withGateway(cmd.Context(), func(gw *gateway.StreamGateway) error {
				return runRelay(cmd.Context(), lio.NewRelay(gw, id), args[1], args[2:], a.out)
			})
		},
	}
}

func newStatusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Read a relay state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withGateway(cmd.Context(), func(gw *gateway.StreamGateway) error {
				on, err := lio.NewRelay(gw, id).Status(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "relay %d: %s\n", id, onOff(on))
				return nil
			})
		},
	}
}

func newLineCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "line <id>",
		Short: "Read an input line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withGateway(cmd.Context(), func(gw *gateway.StreamGateway) error {
				sig, err := gw.LineSignal(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "line %d: %s\n", id, sig)
				return nil
			})
		},
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
