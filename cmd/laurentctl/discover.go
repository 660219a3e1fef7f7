package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/laurent-protocol/laurent-go/internal/fakedevice"
	"github.com/laurent-protocol/laurent-go/pkg/discovery"
)

func newDiscoverCmd(get func() *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find controllers announced over mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			bc := a.cfg.BrowseConfig()
			bc.Logger = a.logger
			if cmd.Flags().Changed("browse-timeout") {
				bc.Timeout = timeout
			}

			services, err := discovery.Collect(cmd.Context(), bc)
			if err != nil {
				return err
			}
			if len(services) == 0 {
				fmt.Fprintln(a.out, "no controllers found")
				return nil
			}
			for _, svc := range services {
				fmt.Fprintln(a.out, svc)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "browse-timeout", discovery.DefaultBrowseTimeout, "how long to listen for announcements")
	return cmd
}

// simulateFlags configure the simulated board.
type simulateFlags struct {
	listen    string
	name      string
	password  string
	relays    int
	inputs    int
	latency   time.Duration
	tick      time.Duration
	advertise string
}

func newSimulateCmd(get func() *app) *cobra.Command {
	var f simulateFlags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated controller",
		Long: `Run a simulated controller that speaks the KE protocol.

With --advertise the board is announced over mDNS under that instance name,
so "laurentctl discover" finds it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().simulate(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.listen, "listen", net.JoinHostPort("127.0.0.1", strconv.Itoa(discovery.DefaultPort)), "listen address")
	fl.StringVar(&f.name, "name", fakedevice.DefaultName, "module name reported by INF")
	fl.StringVar(&f.password, "board-password", fakedevice.DefaultPassword, "password the board accepts")
	fl.IntVar(&f.relays, "relays", fakedevice.DefaultRelays, "number of relays")
	fl.IntVar(&f.inputs, "inputs", fakedevice.DefaultInputs, "number of input lines")
	fl.DurationVar(&f.latency, "latency", 0, "delay before every reply")
	fl.DurationVar(&f.tick, "tick", 0, "send TIME events at this interval (0: never)")
	fl.StringVar(&f.advertise, "advertise", "", "announce the board over mDNS with this instance name")
	return cmd
}

func (a *app) simulate(ctx context.Context, f simulateFlags) error {
	dev := fakedevice.New(fakedevice.Config{
		Name:     f.name,
		Password: f.password,
		Relays:   f.relays,
		Inputs:   f.inputs,
		Latency:  f.latency,
		Logger:   a.logger,
	})
	defer dev.Close()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", f.listen)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "simulating %s on %s\n", f.name, ln.Addr())

	if f.advertise != "" {
		port := ln.Addr().(*net.TCPAddr).Port
		adv, err := discovery.Advertise(discovery.Service{
			Instance: f.advertise,
			Port:     port,
			Model:    f.name,
		}, discovery.AdvertiseConfig{Service: a.cfg.Discovery.Service, Interface: a.cfg.Discovery.Interface})
		if err != nil {
			ln.Close()
			return err
		}
		defer adv.Shutdown()
		a.logger.Info("announced over mDNS", "instance", f.advertise, "port", port)
	}

	if f.tick > 0 {
		go func() {
			ticker := time.NewTicker(f.tick)
			defer ticker.Stop()
			start := time.Now()
			for {
				select {
				case <-ticker.C:
					dev.Tick(uint32(time.Since(start) / time.Second))
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	return dev.ListenAndServe(ctx, ln)
}
