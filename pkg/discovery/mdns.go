package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowseConfig configures browsing.
type BrowseConfig struct {
	// Service is the DNS-SD type. Default: ServiceType.
	Service string

	// Domain defaults to Domain.
	Domain string

	// Interface limits browsing to one network interface. Empty means all.
	Interface string

	// Timeout bounds Collect. Default: DefaultBrowseTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

func (c BrowseConfig) withDefaults() BrowseConfig {
	if c.Service == "" {
		c.Service = ServiceType
	}
	if c.Domain == "" {
		c.Domain = Domain
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultBrowseTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Browse streams controllers until ctx is done. Each instance is sent once,
// when first seen; later answers only add addresses to it. The channel is
// closed when browsing stops.
func Browse(ctx context.Context, cfg BrowseConfig) (<-chan Service, error) {
	cfg = cfg.withDefaults()

	var opts []zeroconf.ClientOption
	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("browse interface %q: %w", cfg.Interface, err)
		}
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}

	out := make(chan Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := serviceFromEntry(entry)
				if existing, found := seen[svc.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				seen[svc.Instance] = &svc
				cfg.Logger.Debug("controller found", "instance", svc.Instance, "address", svc.Address())
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				if existing, found := seen[entry.Instance]; found {
					gone := serviceFromEntry(entry).Addresses
					existing.Addresses = removeAddresses(existing.Addresses, gone)
					if len(existing.Addresses) == 0 {
						delete(seen, entry.Instance)
						cfg.Logger.Debug("controller gone", "instance", entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := zeroconf.Browse(ctx, cfg.Service, cfg.Domain, entries, removed, opts...); err != nil {
			cfg.Logger.Warn("mdns browse failed", "service", cfg.Service, "error", err)
		}
	}()

	return out, nil
}

// Collect browses for cfg.Timeout and returns every controller seen,
// sorted by instance name. Addresses announced on several interfaces are
// merged.
func Collect(ctx context.Context, cfg BrowseConfig) ([]Service, error) {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	found, err := Browse(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var services []Service
	for svc := range found {
		services = append(services, svc)
	}
	sortServices(services)
	return services, nil
}

func serviceFromEntry(entry *zeroconf.ServiceEntry) Service {
	return newService(entry.Instance, entry.HostName, entry.Port, entry.Text, entry.AddrIPv4, entry.AddrIPv6)
}

// AdvertiseConfig configures an announcement.
type AdvertiseConfig struct {
	// Service is the DNS-SD type. Default: ServiceType.
	Service string

	// Domain defaults to Domain.
	Domain string

	// Interface limits the announcement to one interface. Empty means all.
	Interface string

	// TTL of the records. Zero uses the zeroconf default.
	TTL time.Duration
}

// Advertiser announces one controller until Shutdown.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Advertise registers svc on the network. svc.Instance and svc.Port are
// required; the TXT record is built from the model, serial and firmware
// fields.
func Advertise(svc Service, cfg AdvertiseConfig) (*Advertiser, error) {
	if err := ValidateInstance(svc.Instance); err != nil {
		return nil, err
	}
	if svc.Port <= 0 || svc.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, svc.Port)
	}
	if cfg.Service == "" {
		cfg.Service = ServiceType
	}
	if cfg.Domain == "" {
		cfg.Domain = Domain
	}

	var ifaces []net.Interface
	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("advertise interface %q: %w", cfg.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	var opts []zeroconf.ServerOption
	if cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(cfg.TTL.Seconds())))
	}

	server, err := zeroconf.Register(svc.Instance, cfg.Service, cfg.Domain, svc.Port, svc.TXT(), ifaces, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", svc.Instance, err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the announcement. It is safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
