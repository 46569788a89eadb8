package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "forwarded header wins",
			remoteAddr: "10.0.0.1:443",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "X-Real-IP": "198.51.100.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "real ip beats remote addr",
			remoteAddr: "10.0.0.1:443",
			headers:    map[string]string{"X-Real-IP": "198.51.100.2"},
			want:       "198.51.100.2",
		},
		{
			name:       "remote addr host without port",
			remoteAddr: "192.0.2.4:8080",
			headers:    map[string]string{},
			want:       "192.0.2.4",
		},
		{
			name:       "unknown sentinel when nothing available",
			remoteAddr: "",
			headers:    map[string]string{},
			want:       UnknownIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractClientIP(tt.remoteAddr, tt.headers))
		})
	}
}

func TestBrowserLabel(t *testing.T) {
	label := BrowserLabel("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Contains(t, label, "Chrome")

	assert.Equal(t, "Unknown", BrowserLabel(""))
}
