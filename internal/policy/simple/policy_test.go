package simple

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestAllowURL_PublicHosts(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	require.NoError(t, p.AllowURL(mustParse(t, "https://example.com")))
	require.NoError(t, p.AllowURL(mustParse(t, "https://www.example.com/path?q=1")))
	require.NoError(t, p.AllowURL(mustParse(t, "http://93.184.216.34")))
}

func TestAllowURL_RejectsPrivateTargets(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	for _, raw := range []string{
		"http://localhost:8080",
		"http://admin.localhost",
		"http://printer.local",
		"http://127.0.0.1",
		"http://10.1.2.3",
		"http://192.168.0.10",
		"http://169.254.169.254",
		"http://0.0.0.0",
		"http://[::1]",
	} {
		require.Error(t, p.AllowURL(mustParse(t, raw)), raw)
	}
}

func TestAllowURL_AllowPrivateHosts(t *testing.T) {
	t.Parallel()

	p := New(Config{AllowPrivateHosts: true})
	require.NoError(t, p.AllowURL(mustParse(t, "http://127.0.0.1:9000")))
	require.NoError(t, p.AllowURL(mustParse(t, "http://localhost")))
}

func TestAllowURL_DenyList(t *testing.T) {
	t.Parallel()

	p := New(Config{DenyHosts: []string{"Blocked.example", " "}})
	require.Error(t, p.AllowURL(mustParse(t, "https://blocked.example")))
	require.Error(t, p.AllowURL(mustParse(t, "https://api.blocked.example")))
	require.NoError(t, p.AllowURL(mustParse(t, "https://notblocked.example")))
}
