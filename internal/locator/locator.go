// Package locator finds the mesh coordinator (border router) on the local
// network over mDNS when no address is configured.
package locator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"meshscope/internal/domain"
	"meshscope/internal/logging"
)

const (
	// ServiceType is the service CoAP border routers advertise
	ServiceType = "_coap._udp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultTimeout bounds one lookup
	DefaultTimeout = 3 * time.Second
)

// ErrNotFound is returned when no matching coordinator answered in time
var ErrNotFound = errors.New("coordinator not found")

// Locator browses mDNS for the coordinator
type Locator struct {
	Service  string
	Domain   string
	Instance string // empty matches any instance
	Timeout  time.Duration
}

// New creates a locator with default settings
func New() *Locator {
	return &Locator{
		Service: ServiceType,
		Domain:  ServiceDomain,
		Timeout: DefaultTimeout,
	}
}

// Resolve returns the coordinator address as text. Its signature fits the
// topology service's coordinator resolver.
func (l *Locator) Resolve(ctx context.Context) (string, error) {
	addr, err := l.Locate(ctx)
	if err != nil {
		return "", err
	}
	return string(addr), nil
}

// Locate browses until a matching service entry with a usable IPv6 address
// is seen, or the timeout expires
func (l *Locator) Locate(ctx context.Context) (domain.Address, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan domain.Address, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			addr, ok := l.parseServiceEntry(entry)
			if !ok {
				continue
			}
			select {
			case found <- addr:
				cancel()
			default:
			}
		}
	}()

	if err := resolver.Browse(ctx, l.Service, l.Domain, entries); err != nil {
		return "", fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case addr := <-found:
		logging.Info("Located coordinator", zap.String("address", string(addr)))
		return addr, nil
	case <-ctx.Done():
		// A hit may race with the deadline
		select {
		case addr := <-found:
			return addr, nil
		default:
		}
		return "", fmt.Errorf("%w: no %s.%s instance within %s", ErrNotFound, l.Service, l.Domain, timeout)
	}
}

// parseServiceEntry returns the entry's mesh address. Only global and
// unique-local IPv6 addresses qualify; link-local ones need a zone and
// IPv4 is not a mesh address family.
func (l *Locator) parseServiceEntry(entry *zeroconf.ServiceEntry) (domain.Address, bool) {
	if entry == nil {
		return "", false
	}
	if l.Instance != "" && !strings.EqualFold(entry.Instance, l.Instance) {
		return "", false
	}

	for _, ip := range entry.AddrIPv6 {
		if !usable(ip) {
			continue
		}
		addr, err := domain.Normalize(ip.String())
		if err != nil {
			continue
		}
		return addr, true
	}

	logging.Debug("Ignoring mDNS entry without mesh address",
		zap.String("instance", entry.Instance),
		zap.String("host", entry.HostName),
	)
	return "", false
}

func usable(ip net.IP) bool {
	return ip.To4() == nil && ip.To16() != nil &&
		!ip.IsLinkLocalUnicast() && !ip.IsLoopback() && !ip.IsMulticast() && !ip.IsUnspecified()
}
