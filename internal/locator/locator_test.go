package locator

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"

	"meshscope/internal/domain"
)

func entry(instance string, v4 []string, v6 []string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: ServiceType, Domain: ServiceDomain},
		HostName:      instance + ".local.",
		Port:          5683,
	}
	for _, a := range v4 {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(a))
	}
	for _, a := range v6 {
		e.AddrIPv6 = append(e.AddrIPv6, net.ParseIP(a))
	}
	return e
}

func TestLocator_parseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		instance string
		entry    *zeroconf.ServiceEntry
		want     domain.Address
		wantOK   bool
	}{
		{
			name:   "global address",
			entry:  entry("border-router", nil, []string{"2222::3"}),
			want:   "2222:0000:0000:0000:0000:0000:0000:0003",
			wantOK: true,
		},
		{
			name:   "skips link-local before unique-local",
			entry:  entry("border-router", nil, []string{"fe80::1", "fd00::212:4b00:615:a4d2"}),
			want:   "fd00:0000:0000:0000:0212:4b00:0615:a4d2",
			wantOK: true,
		},
		{
			name:   "IPv4 only",
			entry:  entry("border-router", []string{"192.168.1.20"}, nil),
			wantOK: false,
		},
		{
			name:   "link-local only",
			entry:  entry("border-router", nil, []string{"fe80::212:4b00:615:a4d2"}),
			wantOK: false,
		},
		{
			name:     "instance filter matches case-insensitively",
			instance: "Border-Router",
			entry:    entry("border-router", nil, []string{"2222::3"}),
			want:     "2222:0000:0000:0000:0000:0000:0000:0003",
			wantOK:   true,
		},
		{
			name:     "instance filter rejects other services",
			instance: "border-router",
			entry:    entry("printer", nil, []string{"2222::9"}),
			wantOK:   false,
		},
		{
			name:   "nil entry",
			entry:  nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			l.Instance = tt.instance

			got, ok := l.parseServiceEntry(tt.entry)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("address = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	l := New()
	if l.Service != "_coap._udp" || l.Domain != "local." {
		t.Errorf("unexpected defaults %+v", l)
	}
	if l.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %s", l.Timeout)
	}
}
