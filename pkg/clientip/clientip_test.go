package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealClientIP(t *testing.T) {
	cases := map[string]string{
		"203.0.113.7:52100":   "203.0.113.7",
		"[2001:db8::1]:443":   "2001:db8::1",
		"[fe80::1%eth0]:8080": "fe80::1",
		"198.51.100.2":        "198.51.100.2",
		"":                    Unknown,
	}
	for remote, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = remote
		r.Header.Set("X-Forwarded-For", "10.0.0.1")
		assert.Equal(t, want, RealClientIP(r), remote)
	}
}
