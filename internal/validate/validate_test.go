package validate

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Title Tests
// =============================================================================

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "Wake up", "Wake up", false},
		{"trimmed", "  Gym  ", "Gym", false},
		{"control_chars", "Wake\x00 up\n", "Wake up", false},
		{"empty", "", "", false},
		{"unicode_at_limit", strings.Repeat("é", MaxTitleLength), strings.Repeat("é", MaxTitleLength), false},
		{"too_long", strings.Repeat("a", MaxTitleLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Title(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSound(t *testing.T) {
	assert.NoError(t, Sound(""))
	assert.NoError(t, Sound("chime"))
	assert.Error(t, Sound("../../etc/passwd"))
	assert.Error(t, Sound("bell\x07"))
	assert.Error(t, Sound(strings.Repeat("s", MaxSoundLength+1)))
}

func TestWebhookName(t *testing.T) {
	assert.NoError(t, WebhookName("discord"))
	assert.NoError(t, WebhookName("my-hook_2"))
	assert.Error(t, WebhookName(""))
	assert.Error(t, WebhookName("has space"))
}

// =============================================================================
// URL Tests
// =============================================================================

func TestURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		// Valid
		{"https", "https://example.com/webhook", false},
		{"https_with_port", "https://example.com:8080/webhook", false},
		{"https_with_path", "https://example.com/api/v1/webhook", false},
		{"localhost_http", "http://localhost/webhook", false},
		{"localhost_127", "http://127.0.0.1:9000/webhook", false},
		{"localhost_ipv6", "http://[::1]/webhook", false},

		// Invalid
		{"empty", "", true},
		{"http_non_localhost", "http://example.com/webhook", true},
		{"ftp_scheme", "ftp://example.com/file", true},
		{"no_scheme", "example.com/webhook", true},
		{"missing_host", "https:///path", true},
		{"too_long", "https://example.com/" + strings.Repeat("a", MaxURLLength), true},

		// Internal IPs
		{"internal_10", "https://10.0.0.1/webhook", true},
		{"internal_172", "https://172.16.0.1/webhook", true},
		{"internal_192", "https://192.168.1.1/webhook", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := URL(tt.url)
			if tt.wantErr {
				assert.Error(t, err, "URL: %s", tt.url)
			} else {
				assert.NoError(t, err, "URL: %s", tt.url)
			}
		})
	}
}

func TestIsInternalIP(t *testing.T) {
	tests := []struct {
		ip       string
		internal bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.0.1", true},
		{"fe80::1", true},

		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			require.NotNil(t, ip)
			assert.Equal(t, tt.internal, isInternalIP(ip))
		})
	}
}

// =============================================================================
// Sanitize Tests
// =============================================================================

func TestStripControlChars(t *testing.T) {
	assert.Equal(t, "abc", StripControlChars("a\tb\x1bc"))
	assert.Equal(t, "plain", StripControlChars("plain"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcdefg...", TruncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "ééé...", TruncateString("éééééééé", 6))
}
