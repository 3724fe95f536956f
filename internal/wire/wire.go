// Package wire formats outgoing requests and splits raw response buffers.
//
// The response side is deliberately tolerant: a malformed status line yields
// StatusCode -1 without aborting, and a missing header terminator means
// "all headers, no body". Splitting never fails.
package wire

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// DefaultUserAgent is sent when the client does not override it.
const DefaultUserAgent = "go-fetch/1.1"

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
)

// WriteRequest emits a minimal HTTP/1.1 GET:
//
//	GET /path HTTP/1.1\r\n
//	Host: example.com\r\n
//	Connection: close\r\n
//	User-Agent: go-fetch/1.1\r\n
//	\r\n
func WriteRequest(w io.Writer, path, host, userAgent string) error {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	header := bufio.NewWriter(w) // default bufsize is 4096
	header.WriteString("GET ")
	header.WriteString(path)
	header.WriteString(" HTTP/1.1\r\n")
	header.WriteString("Host: ")
	header.WriteString(host)
	header.WriteString("\r\nConnection: close\r\nUser-Agent: ")
	header.WriteString(userAgent)
	if _, err := header.WriteString("\r\n\r\n"); err != nil {
		return err
	}
	return header.Flush()
}

// Split cuts a raw response buffer into status code, header block and body.
// The returned strings are copies, independent of raw's lifetime.
func Split(raw []byte) (status int, headers, body string) {
	end := bytes.Index(raw, crlf)
	if end < 0 {
		return statusCode(raw), "", ""
	}
	status = statusCode(raw[:end])
	rest := raw[end+2:]
	if i := bytes.Index(rest, crlfcrlf); i >= 0 {
		return status, string(rest[:i]), string(rest[i+4:])
	}
	// an immediate CRLF means the terminator straddled the status line:
	// empty header block, rest is body
	if bytes.HasPrefix(rest, crlf) {
		return status, "", string(rest[2:])
	}
	return status, string(rest), ""
}

// statusCode extracts up to three digits following the first space of the
// status line, or -1 when the line doesn't carry a usable code.
func statusCode(line []byte) int {
	i := bytes.IndexByte(line, ' ')
	if i < 0 {
		return -1
	}
	code, n := 0, 0
	for _, c := range line[i+1:] {
		if c < '0' || c > '9' || n == 3 {
			break
		}
		code = code*10 + int(c-'0')
		n++
	}
	if n != 3 {
		return -1
	}
	return code
}

// Header looks up a single header value in a raw header block,
// case-insensitively. Used for Location on redirects.
func Header(headers, name string) (string, bool) {
	for _, line := range strings.Split(headers, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
