package identity

import (
	"regexp"
	"strings"
)

// Unknown is reported when the user-agent matches no known browser or OS.
const Unknown = "Unknown"

// Device type classifications.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

var (
	tabletRe = regexp.MustCompile(`(?i)ipad|tablet`)
	mobileRe = regexp.MustCompile(`(?i)mobi|iphone|ipod|windows phone`)
)

// ParseUserAgent derives coarse device metadata from a user-agent string by
// substring matching. Five browsers and five OS families are recognized;
// anything else reports Unknown. The result is cheap to recompute and is
// never persisted.
func ParseUserAgent(ua string) DeviceInfo {
	return DeviceInfo{
		Browser:    detectBrowser(ua),
		OS:         detectOS(ua),
		DeviceType: detectDeviceType(ua),
	}
}

// detectBrowser checks branded tokens before generic ones: Edge and Opera
// embed "Chrome", and Chrome embeds "Safari".
func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "Edg"):
		return "Edge"
	case strings.Contains(ua, "OPR") || strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Chrome"):
		return "Chrome"
	case strings.Contains(ua, "Safari"):
		return "Safari"
	default:
		return Unknown
	}
}

// detectOS checks mobile platforms before their desktop supersets: Android
// user agents contain "Linux", and iOS ones contain "Mac OS X".
func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"), strings.Contains(ua, "iPod"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return Unknown
	}
}

// detectDeviceType classifies into mobile, tablet, or desktop. Android
// without a "Mobile" token is a tablet per the platform's own convention.
func detectDeviceType(ua string) string {
	switch {
	case tabletRe.MatchString(ua):
		return DeviceTablet
	case mobileRe.MatchString(ua):
		return DeviceMobile
	case strings.Contains(ua, "Android"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}
