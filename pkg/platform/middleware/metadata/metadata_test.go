package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"fitgate/pkg/requestcontext"
)

func TestClientIPExtraction(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trusted    []string
		want       string
	}{
		{
			name:       "ignores XFF from untrusted peer",
			remoteAddr: "192.168.1.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			want:       "192.168.1.1",
		},
		{
			name:       "trusts first XFF hop from trusted proxy",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.2"},
			trusted:    []string{"10.0.0.0/8"},
			want:       "203.0.113.1",
		},
		{
			name:       "falls back on malformed XFF",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "garbage"},
			trusted:    []string{"10.0.0.0/8"},
			want:       "10.0.0.1",
		},
		{
			name:       "uses X-Real-IP from trusted proxy",
			remoteAddr: "[::1]:8080",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			trusted:    []string{"::1/128"},
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			for _, p := range tt.trusted {
				cfg.TrustedProxies = append(cfg.TrustedProxies, netip.MustParsePrefix(p))
			}
			var got string
			h := NewMiddleware(cfg).Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = requestcontext.ClientIP(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "", DeviceLabel(""))
	label := DeviceLabel("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Contains(t, label, "chrome/")
	assert.Contains(t, label, "/desktop")
}
