// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrOutboundDisabled indicates caller supplied targets are disabled by policy.
	ErrOutboundDisabled = errors.New("outbound http(s) disabled")
	// ErrOutboundNotAllowed indicates the URL did not match the allowlist.
	ErrOutboundNotAllowed = errors.New("outbound url not allowed")
)

// Resolver looks up the addresses of a host.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// OutboundPolicy decides which caller supplied URLs the daemon may send
// captured media to. A URL passes when its scheme and port are listed and its
// host is listed or every resolved address falls into an allowed prefix.
// Loopback, link-local, multicast and unspecified addresses are refused unless
// a prefix allows them explicitly.
type OutboundPolicy struct {
	Enabled bool     `yaml:"enabled"`
	Hosts   []string `yaml:"hosts,omitempty"`
	CIDRs   []string `yaml:"cidrs,omitempty"`
	Ports   []int    `yaml:"ports,omitempty"`
	Schemes []string `yaml:"schemes,omitempty"`

	// Resolver defaults to net.DefaultResolver.
	Resolver Resolver `yaml:"-"`
}

// Validate reports configuration errors in the allowlist itself.
func (p OutboundPolicy) Validate() error {
	if !p.Enabled {
		return nil
	}
	if len(p.Schemes) == 0 || len(p.Ports) == 0 {
		return errors.New("outbound policy needs at least one scheme and one port")
	}
	if len(p.Hosts) == 0 && len(p.CIDRs) == 0 {
		return errors.New("outbound policy needs hosts or cidrs")
	}
	if _, err := p.hostSet(); err != nil {
		return err
	}
	_, err := p.prefixes()
	return err
}

// Check verifies raw against the policy and returns the normalized URL.
func (p OutboundPolicy) Check(ctx context.Context, raw string) (*url.URL, error) {
	if !p.Enabled {
		return nil, ErrOutboundDisabled
	}
	u, ok := ParseDirectHTTPURL(raw)
	if !ok {
		return nil, fmt.Errorf("invalid outbound url %q", SanitizeURL(raw))
	}
	scheme := strings.ToLower(u.Scheme)
	if !slices.ContainsFunc(p.Schemes, func(s string) bool { return strings.EqualFold(strings.TrimSpace(s), scheme) }) {
		return nil, fmt.Errorf("scheme %q not allowed", scheme)
	}
	port, err := effectivePort(u, scheme)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(p.Ports, port) {
		return nil, fmt.Errorf("port %d not allowed", port)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}
	hosts, err := p.hostSet()
	if err != nil {
		return nil, err
	}
	prefixes, err := p.prefixes()
	if err != nil {
		return nil, err
	}
	addrs, err := p.resolve(ctx, host)
	if err != nil {
		return nil, err
	}

	_, hostAllowed := hosts[host]
	inPrefix := len(addrs) > 0
	for _, a := range addrs {
		allowed := slices.ContainsFunc(prefixes, func(pfx netip.Prefix) bool { return pfx.Contains(a) })
		if blockedAddr(a) && !allowed {
			return nil, fmt.Errorf("blocked ip %s", a)
		}
		inPrefix = inPrefix && allowed
	}
	if !hostAllowed && !inPrefix {
		return nil, ErrOutboundNotAllowed
	}

	if u.Port() == "" {
		u.Host = hostLiteral(host)
	} else {
		u.Host = net.JoinHostPort(host, u.Port())
	}
	return u, nil
}

// NormalizeHost lowercases raw, strips a trailing dot and converts IDNs to
// their ASCII form.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSuffix(strings.Trim(strings.TrimSpace(raw), "[]"), ".")
	if host == "" {
		return "", errors.New("host is empty")
	}
	if strings.ContainsAny(host, "/@%") {
		return "", fmt.Errorf("invalid host %q", raw)
	}
	if a, err := netip.ParseAddr(host); err == nil {
		return a.Unmap().String(), nil
	}
	if strings.Contains(host, ":") {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

func (p OutboundPolicy) hostSet() (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(p.Hosts))
	for _, h := range p.Hosts {
		n, err := NormalizeHost(h)
		if err != nil {
			return nil, err
		}
		set[n] = struct{}{}
	}
	return set, nil
}

func (p OutboundPolicy) prefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(p.CIDRs))
	for _, entry := range p.CIDRs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if pfx, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, pfx.Masked())
			continue
		}
		a, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		out = append(out, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
	}
	return out, nil
}

func (p OutboundPolicy) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if a, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{a.Unmap()}, nil
	}
	r := p.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Unmap())
	}
	return out, nil
}

func blockedAddr(a netip.Addr) bool {
	return !a.IsValid() ||
		a.IsLoopback() ||
		a.IsUnspecified() ||
		a.IsLinkLocalUnicast() ||
		a.IsLinkLocalMulticast() ||
		a.IsMulticast()
}

func effectivePort(u *url.URL, scheme string) (int, error) {
	if u.Port() == "" {
		if scheme == "https" {
			return 443, nil
		}
		return 80, nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", u.Port(), err)
	}
	return port, nil
}

func hostLiteral(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
