package conn

import (
	"context"
	"net"
)

// ResolveConfig controls name resolution for a client.
type ResolveConfig struct {
	CustomDNSServer string
	Network         string            // one of "ip4", "ip6", default is "ip"
	StaticHosts     map[string]string // resembles /etc/hosts
}

func (c *ResolveConfig) Clone() *ResolveConfig {
	if c == nil {
		return nil
	}
	return &ResolveConfig{
		CustomDNSServer: c.CustomDNSServer,
		Network:         c.Network,
		StaticHosts:     c.StaticHosts,
	}
}

// this type should not be used outside this file.
// prevents non-custom DNS server contexts to iterate through all keys
type dnsServerCtx struct {
	context.Context
	server string
}

var dnsServerCtxKey = &dnsServerCtx{nil, "dns-server"} // non-nil pointer to any object, definitely unique

func (c dnsServerCtx) Value(key interface{}) interface{} {
	if key == dnsServerCtxKey {
		return c.server
	}
	return c.Context.Value(key)
}

var zeroDialer net.Dialer

var customServerResolver = net.Resolver{
	PreferGo: true,
	Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		if v, ok := ctx.Value(dnsServerCtxKey).(string); ok && v != "" {
			return zeroDialer.DialContext(ctx, network, v)
		}
		return zeroDialer.DialContext(ctx, network, address)
	},
}

// lookup resolves host to a candidate address list, honoring the static
// hosts map and an optional custom DNS server.
func (c *ResolveConfig) lookup(ctx context.Context, host string) ([]net.IP, error) {
	network, dns := "ip", ""
	if c != nil {
		if static, ok := c.StaticHosts[host]; ok {
			if ip := net.ParseIP(static); ip != nil {
				return []net.IP{ip}, nil
			}
			host = static
		}
		if c.Network != "" {
			network = c.Network
		}
		dns = c.CustomDNSServer
	}
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	return customServerResolver.LookupIP(dnsServerCtx{ctx, dns}, network, host)
}
