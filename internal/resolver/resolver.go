// Package resolver implements the default interfaces.Resolver on top of
// github.com/miekg/dns, giving the pool manager explicit per-query retry
// control that net.Resolver does not expose: a configurable retransmit
// count needs a client that can reissue the same query against the same
// or a fallback server.
package resolver

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"

	"github.com/sentryfilter/upstream/internal/logging"
)

var log = logging.Logger("resolver")

// DNS is the default interfaces.Resolver implementation. It is safe for
// concurrent use.
type DNS struct {
	client *dns.Client

	mu      sync.RWMutex
	servers []string // "host:port"
}

// New builds a DNS resolver. Servers, if non-empty, are tried in order for
// every query. When empty, New reads /etc/resolv.conf and falls back to
// the public resolver at 8.8.8.8:53 if that file cannot be read.
func New(servers ...string) *DNS {
	if len(servers) == 0 {
		servers = systemServers()
	}
	return &DNS{
		client:  &dns.Client{Net: "udp"},
		servers: servers,
	}
}

func systemServers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"8.8.8.8:53"}
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	return out
}

// SetServers replaces the list of nameservers queried.
func (d *DNS) SetServers(servers []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers = append([]string(nil), servers...)
}

// LookupA implements interfaces.Resolver.
func (d *DNS) LookupA(ctx context.Context, name string, retransmits int) ([]net.IP, error) {
	return d.lookup(ctx, name, dns.TypeA, retransmits)
}

// LookupAAAA implements interfaces.Resolver.
func (d *DNS) LookupAAAA(ctx context.Context, name string, retransmits int) ([]net.IP, error) {
	return d.lookup(ctx, name, dns.TypeAAAA, retransmits)
}

func (d *DNS) lookup(ctx context.Context, name string, qtype uint16, retransmits int) ([]net.IP, error) {
	d.mu.RLock()
	servers := d.servers
	d.mu.RUnlock()

	if len(servers) == 0 {
		return nil, fmt.Errorf("resolver: no nameservers configured")
	}
	if retransmits < 0 {
		retransmits = 0
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	attempts := retransmits + 1
	for i := 0; i < attempts; i++ {
		server := servers[i%len(servers)]

		in, _, err := d.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("resolver: %s lookup for %q: %s", dns.TypeToString[qtype], name, dns.RcodeToString[in.Rcode])
			continue
		}
		return extractIPs(in, qtype), nil
	}

	log.Debug("lookup exhausted retransmits", "name", name, "qtype", dns.TypeToString[qtype], "attempts", attempts, "err", lastErr)
	if lastErr == nil {
		lastErr = fmt.Errorf("resolver: lookup for %q failed", name)
	}
	return nil, lastErr
}

func extractIPs(in *dns.Msg, qtype uint16) []net.IP {
	ips := make([]net.IP, 0, len(in.Answer))
	for _, rr := range in.Answer {
		switch qtype {
		case dns.TypeA:
			if a, ok := rr.(*dns.A); ok {
				ips = append(ips, a.A)
			}
		case dns.TypeAAAA:
			if aaaa, ok := rr.(*dns.AAAA); ok {
				ips = append(ips, aaaa.AAAA)
			}
		}
	}
	return ips
}
