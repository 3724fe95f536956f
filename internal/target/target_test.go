package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]struct {
		in   string
		want Target
	}{
		"PlainDefaults": {"http://example.com", Target{"example.com", "80", "/", false}},
		"PlainPath":     {"http://example.com/a/b?c=d", Target{"example.com", "80", "/a/b?c=d", false}},
		"PlainPort":     {"http://example.com:8080/x", Target{"example.com", "8080", "/x", false}},
		"HTTPSDefaults": {"https://example.com", Target{"example.com", "443", "/", true}},
		"HTTPSPort":     {"https://example.com:8443/", Target{"example.com", "8443", "/", true}},
		"IPHost":        {"http://127.0.0.1:9000/ping", Target{"127.0.0.1", "9000", "/ping", false}},
		"TrailingSlash": {"http://example.com/", Target{"example.com", "80", "/", false}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"example.com",
		"ftp://example.com/",
		"http//example.com",
		"http://",
		"http://:80/",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformedURL, "input %q", in)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "http://example.com/", Target{"example.com", "80", "/", false}.String())
	assert.Equal(t, "http://example.com:8080/x", Target{"example.com", "8080", "/x", false}.String())
	assert.Equal(t, "https://example.com/", Target{"example.com", "443", "/", true}.String())
}

func TestHostHeader(t *testing.T) {
	assert.Equal(t, "example.com", Target{"example.com", "80", "/", false}.HostHeader())
	assert.Equal(t, "example.com:444", Target{"example.com", "444", "/", true}.HostHeader())
}

func TestResolveLocationAbsolute(t *testing.T) {
	cur := Target{"a.example", "80", "/old", false}
	for _, loc := range []string{
		"http://b.example/new",
		"https://b.example:8443/new",
		"http://a.example/other",
	} {
		// resolving an absolute Location must match parsing it directly
		viaResolve, err := cur.ResolveLocation(loc)
		require.NoError(t, err)
		direct, err := Parse(loc)
		require.NoError(t, err)
		assert.Equal(t, direct, viaResolve, "location %q", loc)
	}
}

func TestResolveLocationRelative(t *testing.T) {
	cur := Target{"a.example", "8080", "/old", false}
	got, err := cur.ResolveLocation("/new?x=1")
	require.NoError(t, err)
	assert.Equal(t, Target{"a.example", "8080", "/new?x=1", false}, got)

	got, err = cur.ResolveLocation("bare")
	require.NoError(t, err)
	assert.Equal(t, Target{"a.example", "8080", "/bare", false}, got)

	sec := Target{"a.example", "443", "/old", true}
	got, err = sec.ResolveLocation("/next")
	require.NoError(t, err)
	assert.Equal(t, Target{"a.example", "443", "/next", true}, got)
}

func TestResolveLocationEmpty(t *testing.T) {
	_, err := Target{"a.example", "80", "/", false}.ResolveLocation("")
	assert.ErrorIs(t, err, ErrEmptyLocation)
}
