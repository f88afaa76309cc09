// Package validate provides input validation helpers for the timely CLI.
package validate

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

const (
	// MaxURLLength is the maximum length for a webhook URL.
	MaxURLLength = 2048
	// MaxTitleLength is the maximum length for an alarm title.
	MaxTitleLength = 100
	// MaxSoundLength is the maximum length for a sound name.
	MaxSoundLength = 64
)

// Title cleans an alarm title and checks its length. The cleaned title
// is returned so callers store what was validated.
func Title(title string) (string, error) {
	title = strings.TrimSpace(StripControlChars(title))
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", errors.NewUserErrorWithField(nil, "title", TruncateString(title, 20),
			"Title too long",
			fmt.Sprintf("Titles must be %d characters or fewer", MaxTitleLength))
	}
	return title, nil
}

// Sound validates a ringtone name.
func Sound(sound string) error {
	if len(sound) > MaxSoundLength {
		return errors.NewUserErrorWithField(nil, "sound", TruncateString(sound, 20),
			"Sound name too long",
			fmt.Sprintf("Sound names must be %d characters or fewer", MaxSoundLength))
	}
	if strings.IndexFunc(sound, unicode.IsControl) >= 0 || strings.ContainsAny(sound, `/\`) {
		return errors.NewUserErrorWithField(nil, "sound", sound,
			"Invalid sound name",
			"Use a ringtone name such as 'default' or 'chime'")
	}
	return nil
}

// WebhookName validates a webhook name.
func WebhookName(name string) error {
	if name == "" {
		return errors.NewUserError("Webhook name cannot be empty", "Provide a name like 'discord'")
	}
	if !model.IsValidWebhookName(name) {
		return errors.NewUserErrorWithField(nil, "name", name,
			"Invalid webhook name",
			"Use letters, digits, dash or underscore, at most 50 characters.")
	}
	return nil
}

// URL validates a URL for use as a webhook endpoint.
func URL(rawURL string) error {
	if rawURL == "" {
		return errors.NewUserError("URL cannot be empty", "Provide a valid URL")
	}
	if len(rawURL) > MaxURLLength {
		return errors.NewUserError("URL too long", "URLs must be 2048 characters or fewer")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewUserErrorWithField(err, "url", rawURL,
			"Invalid URL format",
			"Provide a valid URL starting with https://")
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.NewUserErrorWithField(nil, "url", rawURL,
			"Invalid URL scheme",
			"URLs must use https:// (or http:// for localhost)")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.NewUserErrorWithField(nil, "url", rawURL,
			"Invalid URL: missing hostname",
			"Provide a valid URL like https://example.com/webhook")
	}

	if IsLocalhost(hostname) {
		return nil
	}
	if parsed.Scheme == "http" {
		return errors.NewUserErrorWithField(nil, "url", rawURL,
			"HTTP not allowed for external URLs",
			"Use https://. HTTP is only allowed for localhost.")
	}
	return checkInternalIP(hostname)
}

// IsLocalhost reports whether hostname names the loopback host.
func IsLocalhost(hostname string) bool {
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

// checkInternalIP rejects literal private addresses. Hostnames are not
// resolved here; delivery fails later if the name does not resolve.
func checkInternalIP(hostname string) error {
	ip := net.ParseIP(hostname)
	if ip == nil {
		return nil
	}
	if isInternalIP(ip) {
		return errors.NewUserErrorWithField(nil, "url", hostname,
			"Internal IP addresses not allowed",
			"Webhook URLs must point to external services")
	}
	return nil
}

var privateNetworks = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"fc00::/7",
		"fe80::/10",
		"::1/128",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}()

func isInternalIP(ip net.IP) bool {
	for _, n := range privateNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// StripControlChars removes all control characters from a string.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// TruncateString truncates s to maxLen runes, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
