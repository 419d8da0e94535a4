// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package origin decides which manifest origins the player may contact.
package origin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ErrNotAllowed means the origin matched neither the host nor the CIDR allowlist.
var ErrNotAllowed = errors.New("origin not allowed")

// Resolver looks up host addresses. *net.Resolver implements it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Policy restricts manifest origins. An unrestricted policy only checks URL
// shape. A restricted one also requires an allowlisted host or an address
// inside an allowlisted CIDR, and rejects loopback, link-local and
// multicast addresses unless a CIDR names them.
type Policy struct {
	Restrict bool
	Hosts    []string
	CIDRs    []string
	Ports    []int    // empty allows any port
	Schemes  []string // empty means http and https

	Resolver Resolver // nil uses net.DefaultResolver
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", errors.New("host is empty")
	}
	if strings.ContainsAny(host, "/@") || strings.Contains(host, "://") {
		return "", fmt.Errorf("host must be a bare name or address: %s", raw)
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", errors.New("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// Validate checks the allowlist entries themselves.
func (p Policy) Validate() error {
	var errs []error
	for _, h := range p.Hosts {
		if _, err := NormalizeHost(h); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := parseCIDRs(p.CIDRs); err != nil {
		errs = append(errs, err)
	}
	for _, port := range p.Ports {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("invalid port %d", port))
		}
	}
	for _, s := range p.Schemes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "http" && s != "https" {
			errs = append(errs, fmt.Errorf("unsupported scheme %q", s))
		}
	}
	return errors.Join(errs...)
}

// Check verifies raw against the policy and returns it with a normalized host.
func (p Policy) Check(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return "", errors.New("missing url host")
	}
	if u.User != nil {
		return "", errors.New("credentials in url not allowed")
	}
	if u.Fragment != "" {
		return "", errors.New("fragments not allowed")
	}

	scheme := strings.ToLower(u.Scheme)
	schemes := p.Schemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	if !slices.ContainsFunc(schemes, func(s string) bool { return strings.EqualFold(strings.TrimSpace(s), scheme) }) {
		return "", fmt.Errorf("scheme %q not allowed", scheme)
	}

	port, err := urlPort(u, scheme)
	if err != nil {
		return "", err
	}
	if len(p.Ports) > 0 && !slices.Contains(p.Ports, port) {
		return "", fmt.Errorf("port %d not allowed", port)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}
	u.Host = joinHostPort(host, u.Port())
	if !p.Restrict {
		return u.String(), nil
	}

	cidrs, err := parseCIDRs(p.CIDRs)
	if err != nil {
		return "", err
	}
	hostAllowed := false
	for _, h := range p.Hosts {
		if n, err := NormalizeHost(h); err == nil && n == host {
			hostAllowed = true
			break
		}
	}

	ips, err := p.resolve(ctx, host)
	if err != nil {
		return "", err
	}
	ipAllowed := false
	for _, ip := range ips {
		inCIDR := ipInCIDRs(ip, cidrs)
		if isBlockedIP(ip) && !inCIDR {
			return "", fmt.Errorf("blocked ip %s", ip)
		}
		ipAllowed = ipAllowed || inCIDR
	}
	if !hostAllowed && !ipAllowed {
		return "", fmt.Errorf("%w: %s", ErrNotAllowed, host)
	}
	return u.String(), nil
}

func (p Policy) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	r := p.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if a.IP != nil {
			ips = append(ips, a.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

func urlPort(u *url.URL, scheme string) (int, error) {
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

// parseCIDRs accepts CIDRs and bare addresses.
func parseCIDRs(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

func isBlockedIP(ip net.IP) bool {
	return ip == nil ||
		ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func ipInCIDRs(ip net.IP, cidrs []*net.IPNet) bool {
	for _, n := range cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}

// Sanitize drops credentials and query parameters for logging.
func Sanitize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
