package discovery

import (
	"cmp"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD type announced for Laurent controllers.
	ServiceType = "_laurent._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the KE command port.
	DefaultPort = 2424

	// DefaultBrowseTimeout bounds Collect when no timeout is configured.
	DefaultBrowseTimeout = 3 * time.Second
)

// TXT record keys.
const (
	TXTKeyModel    = "model"
	TXTKeySerial   = "serial"
	TXTKeyFirmware = "fw"
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

var (
	// ErrInvalidInstance is returned for empty or overlong instance names.
	ErrInvalidInstance = errors.New("invalid instance name")

	// ErrInvalidPort is returned for ports outside 1..65535.
	ErrInvalidPort = errors.New("invalid port")
)

// Service is one discovered controller.
type Service struct {
	Instance  string
	Host      string
	Port      int
	Addresses []string

	Model    string
	Serial   string
	Firmware string
}

// Address returns host:port for dialing. A literal address is preferred
// over the host name; IPv4 is preferred over IPv6.
func (s Service) Address() string {
	port := strconv.Itoa(s.Port)
	if s.Port == 0 {
		port = strconv.Itoa(DefaultPort)
	}
	for _, a := range s.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return net.JoinHostPort(a, port)
		}
	}
	if len(s.Addresses) > 0 {
		return net.JoinHostPort(s.Addresses[0], port)
	}
	return net.JoinHostPort(strings.TrimSuffix(s.Host, "."), port)
}

// String returns a one-line description.
func (s Service) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", s.Instance, s.Address())
	if s.Model != "" {
		fmt.Fprintf(&b, " model=%s", s.Model)
	}
	if s.Serial != "" {
		fmt.Fprintf(&b, " serial=%s", s.Serial)
	}
	if s.Firmware != "" {
		fmt.Fprintf(&b, " fw=%s", s.Firmware)
	}
	return b.String()
}

// TXT returns the TXT strings announcing s.
func (s Service) TXT() []string {
	var txt []string
	if s.Model != "" {
		txt = append(txt, TXTKeyModel+"="+s.Model)
	}
	if s.Serial != "" {
		txt = append(txt, TXTKeySerial+"="+s.Serial)
	}
	if s.Firmware != "" {
		txt = append(txt, TXTKeyFirmware+"="+s.Firmware)
	}
	return txt
}

// ParseTXT parses "key=value" strings. Keys are case-insensitive; a key
// without "=" maps to the empty string.
func ParseTXT(strs []string) map[string]string {
	txt := make(map[string]string, len(strs))
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		txt[strings.ToLower(k)] = v
	}
	return txt
}

// ValidateInstance checks an instance name for announcing.
func ValidateInstance(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInstance)
	}
	if len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidInstance, len(name))
	}
	return nil
}

func newService(instance, host string, port int, text []string, ips ...[]net.IP) Service {
	txt := ParseTXT(text)
	svc := Service{
		Instance: instance,
		Host:     host,
		Port:     port,
		Model:    txt[TXTKeyModel],
		Serial:   txt[TXTKeySerial],
		Firmware: txt[TXTKeyFirmware],
	}
	for _, list := range ips {
		for _, ip := range list {
			svc.Addresses = mergeAddresses(svc.Addresses, []string{ip.String()})
		}
	}
	return svc
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	for _, addr := range added {
		if !slices.Contains(existing, addr) {
			existing = append(existing, addr)
		}
	}
	return existing
}

// removeAddresses drops every address in gone from addresses.
func removeAddresses(addresses, gone []string) []string {
	return slices.DeleteFunc(addresses, func(a string) bool {
		return slices.Contains(gone, a)
	})
}

func sortServices(services []Service) {
	slices.SortFunc(services, func(a, b Service) int {
		return cmp.Compare(a.Instance, b.Instance)
	})
}
