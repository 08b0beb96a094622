package internal

import (
	"net"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessList(t *testing.T) {
	deny := writeFile(t, "deny.txt", `
# whole test net
192.0.2.0/24
2001:db8::1   # single v6 host
`)
	allow := writeFile(t, "allow.txt", "192.0.2.7\n")

	acl, err := LoadAccessList(deny, allow)
	require.NoError(t, err)

	cases := []struct {
		ip      string
		allowed bool
	}{
		{"192.0.2.1", false},
		{"192.0.2.7", true},
		{"198.51.100.1", true},
		{"2001:db8::1", false},
		{"2001:db8::2", true},
	}

	for _, c := range cases {
		allowed, err := acl.Permits(net.ParseIP(c.ip))
		require.NoError(t, err)
		assert.Equal(t, c.allowed, allowed, c.ip)
	}
}

func TestAccessListBadLine(t *testing.T) {
	_, err := parseRanges(strings.NewReader("10.0.0.1\nnot-an-ip\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestAccessListEmptyPaths(t *testing.T) {
	acl, err := LoadAccessList("", "")
	require.NoError(t, err)

	allowed, err := acl.Permits(net.ParseIP("10.1.2.3"))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/stats", nil)
	r.RemoteAddr = "203.0.113.9:4321"
	assert.Equal(t, "203.0.113.9", ClientIP(r).String())

	r.Header.Set("X-Real-IP", "198.51.100.3")
	assert.Equal(t, "198.51.100.3", ClientIP(r).String())
}
