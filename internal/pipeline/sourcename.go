package pipeline

import (
	"net/url"
	"strings"
)

// knownSources maps scrape-source domains to their display names.
var knownSources = map[string]string{
	"yelp.com":         "Yelp",
	"angi.com":         "Angi",
	"angieslist.com":   "Angi",
	"homeadvisor.com":  "HomeAdvisor",
	"thumbtack.com":    "Thumbtack",
	"houzz.com":        "Houzz",
	"bbb.org":          "Better Business Bureau",
	"google.com":       "Google Maps",
	"maps.google.com":  "Google Maps",
	"facebook.com":     "Facebook",
	"nextdoor.com":     "Nextdoor",
	"porch.com":        "Porch",
	"buildzoom.com":    "BuildZoom",
	"yellowpages.com":  "Yellow Pages",
	"trustpilot.com":   "Trustpilot",
	"checkbook.org":    "Consumers' Checkbook",
}

// DetectSourceName derives a human-readable source name from a scraped URL.
// Known directory domains map to their display names; anything else falls
// back to the registrable domain with the TLD stripped and the first letter
// capitalized ("acmeplumbing.com" becomes "Acmeplumbing").
func DetectSourceName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if name, ok := knownSources[host]; ok {
		return name
	}

	// Try the registrable domain: "deals.yelp.com" should still be Yelp.
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		base := strings.Join(parts[len(parts)-2:], ".")
		if name, ok := knownSources[base]; ok {
			return name
		}
		host = base
	}

	name := strings.TrimSuffix(host, ".com")
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
