package identity

import "testing"

// TestParseUserAgent_KnownAgents covers the browser/OS/device matrix,
// including the ordering traps (Edge and Opera embed "Chrome", Chrome embeds
// "Safari", Android embeds "Linux", iOS embeds "Mac OS X").
func TestParseUserAgent_KnownAgents(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		browser    string
		os         string
		deviceType string
	}{
		{
			name:       "chrome on windows desktop",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser:    "Chrome",
			os:         "Windows",
			deviceType: DeviceDesktop,
		},
		{
			name:       "edge on windows",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			browser:    "Edge",
			os:         "Windows",
			deviceType: DeviceDesktop,
		},
		{
			name:       "opera on linux",
			ua:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 OPR/105.0.0.0",
			browser:    "Opera",
			os:         "Linux",
			deviceType: DeviceDesktop,
		},
		{
			name:       "firefox on macos",
			ua:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
			browser:    "Firefox",
			os:         "macOS",
			deviceType: DeviceDesktop,
		},
		{
			name:       "safari on iphone",
			ua:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			browser:    "Safari",
			os:         "iOS",
			deviceType: DeviceMobile,
		},
		{
			name:       "safari on ipad",
			ua:         "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			browser:    "Safari",
			os:         "iOS",
			deviceType: DeviceTablet,
		},
		{
			name:       "chrome on android phone",
			ua:         "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			browser:    "Chrome",
			os:         "Android",
			deviceType: DeviceMobile,
		},
		{
			name:       "chrome on android tablet (no mobile token)",
			ua:         "Mozilla/5.0 (Linux; Android 14; SM-X910) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser:    "Chrome",
			os:         "Android",
			deviceType: DeviceTablet,
		},
		{
			name:       "empty user agent",
			ua:         "",
			browser:    Unknown,
			os:         Unknown,
			deviceType: DeviceDesktop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseUserAgent(tt.ua)
			if got.Browser != tt.browser {
				t.Errorf("Browser = %q, want %q", got.Browser, tt.browser)
			}
			if got.OS != tt.os {
				t.Errorf("OS = %q, want %q", got.OS, tt.os)
			}
			if got.DeviceType != tt.deviceType {
				t.Errorf("DeviceType = %q, want %q", got.DeviceType, tt.deviceType)
			}
		})
	}
}
