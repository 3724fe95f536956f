package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRequest(t *testing.T) {
	cases := map[string]struct {
		path, host, ua string
		want           string
	}{
		"Root": {
			"/", "example.com", "",
			"GET / HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\nUser-Agent: " + DefaultUserAgent + "\r\n\r\n",
		},
		"PathQueryAndPort": {
			"/a?b=c", "example.com:8080", "probe/0.1",
			"GET /a?b=c HTTP/1.1\r\nHost: example.com:8080\r\nConnection: close\r\nUser-Agent: probe/0.1\r\n\r\n",
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRequest(&buf, c.path, c.host, c.ua))
			assert.Equal(t, c.want, buf.String())
		})
	}
}

func TestSplit(t *testing.T) {
	cases := map[string]struct {
		raw     string
		status  int
		headers string
		body    string
	}{
		"Basic": {
			"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello",
			200, "Content-Type: text/plain", "hello",
		},
		"NoBody": {
			"HTTP/1.1 204 No Content\r\nX-A: 1\r\n\r\n",
			204, "X-A: 1", "",
		},
		"NoHeaderTerminator": {
			"HTTP/1.1 200 OK\r\nX-A: 1\r\nX-B: 2",
			200, "X-A: 1\r\nX-B: 2", "",
		},
		"MalformedStatusLine": {
			"garbage\r\nX-A: 1\r\n\r\nbody",
			-1, "X-A: 1", "body",
		},
		"ShortStatusCode": {
			"HTTP/1.1 20\r\n\r\n",
			-1, "", "",
		},
		"StatusLineOnly": {
			"HTTP/1.1 301 Moved Permanently",
			301, "", "",
		},
		"Empty": {
			"",
			-1, "", "",
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			status, headers, body := Split([]byte(c.raw))
			assert.Equal(t, c.status, status)
			assert.Equal(t, c.headers, headers)
			assert.Equal(t, c.body, body)
		})
	}
}

func TestSplitCopies(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nX-A: 1\r\n\r\nbody")
	_, headers, body := Split(raw)
	for i := range raw {
		raw[i] = 'z'
	}
	assert.Equal(t, "X-A: 1", headers)
	assert.Equal(t, "body", body)
}

func TestHeader(t *testing.T) {
	block := "Content-Type: text/html\r\nlocation:  /new \r\nX-Empty:"
	v, ok := Header(block, "Location")
	require.True(t, ok)
	assert.Equal(t, "/new", v)

	v, ok = Header(block, "content-type")
	require.True(t, ok)
	assert.Equal(t, "text/html", v)

	_, ok = Header(block, "Missing")
	assert.False(t, ok)
}
