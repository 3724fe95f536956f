// Package target parses absolute http/https URLs into connection targets
// and resolves redirect Location values against a current target.
package target

import (
	"errors"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrMalformedURL  = errors.New("fetch: malformed or unsupported url")
	ErrEmptyLocation = errors.New("fetch: empty redirect location")
)

// Target is one resolved connection destination. Port is kept as a string
// so it can be joined with the host without conversion.
type Target struct {
	Host  string
	Port  string
	Path  string
	HTTPS bool
}

// Parse splits an absolute URL into a Target. Only http and https schemes
// are supported; the port defaults to 80/443 and the path to "/".
func Parse(rawURL string) (Target, error) {
	var t Target
	rest, ok := strings.CutPrefix(rawURL, "http://")
	if !ok {
		if rest, ok = strings.CutPrefix(rawURL, "https://"); !ok {
			return t, ErrMalformedURL
		}
		t.HTTPS = true
	}

	hostport, path, found := strings.Cut(rest, "/")
	if found {
		t.Path = "/" + path
	} else {
		t.Path = "/"
	}

	host, port, found := strings.Cut(hostport, ":")
	if found {
		t.Port = port
	} else if t.HTTPS {
		t.Port = "443"
	} else {
		t.Port = "80"
	}
	if host == "" || t.Port == "" {
		return Target{}, ErrMalformedURL
	}
	for _, c := range t.Port {
		if c < '0' || c > '9' {
			return Target{}, ErrMalformedURL
		}
	}
	// net/http does the same normalization before dialing
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	t.Host = host
	return t, nil
}

// String reassembles the canonical absolute URL. Default ports are elided
// so equivalent targets compare equal in the visited history.
func (t Target) String() string {
	var b strings.Builder
	if t.HTTPS {
		b.WriteString("https://")
	} else {
		b.WriteString("http://")
	}
	b.WriteString(t.Host)
	if t.Port != t.defaultPort() {
		b.WriteByte(':')
		b.WriteString(t.Port)
	}
	b.WriteString(t.Path)
	return b.String()
}

// HostHeader is the value to send in the Host header: the port is included
// only when it differs from the scheme default.
func (t Target) HostHeader() string {
	if t.Port == t.defaultPort() {
		return t.Host
	}
	return t.Host + ":" + t.Port
}

func (t Target) defaultPort() string {
	if t.HTTPS {
		return "443"
	}
	return "80"
}

// ResolveLocation turns a Location header value into the next Target.
// Absolute values replace the target entirely; relative values are combined
// with the current scheme, host and port first.
func (t Target) ResolveLocation(location string) (Target, error) {
	if location == "" {
		return Target{}, ErrEmptyLocation
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return Parse(location)
	}
	scheme := "http://"
	if t.HTTPS {
		scheme = "https://"
	}
	if !strings.HasPrefix(location, "/") {
		location = "/" + location
	}
	return Parse(scheme + t.Host + ":" + t.Port + location)
}
