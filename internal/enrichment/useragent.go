package enrichment

import (
	"github.com/mssola/useragent"
)

// UAResult contains parsed user-agent data
type UAResult struct {
	BrowserName string
	OSName      string
	DeviceType  string
	IsMobile    bool
}

// ParseUserAgent parses a user-agent string
func ParseUserAgent(uaString string) *UAResult {
	ua := useragent.New(uaString)

	browserName, _ := ua.Browser()

	result := &UAResult{
		BrowserName: browserName,
		OSName:      ua.OS(),
		IsMobile:    ua.Mobile(),
	}

	if ua.Mobile() {
		result.DeviceType = "mobile"
	} else {
		result.DeviceType = "desktop"
	}

	return result
}

// BrowserLabel renders a short human-readable label for visitor lists,
// e.g. "Chrome on Mac OS X".
func BrowserLabel(uaString string) string {
	if uaString == "" {
		return "Unknown"
	}
	ua := ParseUserAgent(uaString)
	if ua.BrowserName == "" {
		return "Unknown"
	}
	if ua.OSName == "" {
		return ua.BrowserName
	}
	return ua.BrowserName + " on " + ua.OSName
}
