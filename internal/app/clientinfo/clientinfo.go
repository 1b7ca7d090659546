// Package clientinfo classifies a client's user agent into the closed device,
// browser and OS vocabularies used by click analytics.
//
// Each dimension is an ordered rule list evaluated top to bottom; the first
// matching rule wins. Mobile platforms are listed before desktop ones because
// Android agents carry "Linux" and iOS agents carry "Mac OS X". Chromium based
// browsers also carry "Safari", so the Safari rule excludes Chromium tokens.
package clientinfo

import "strings"

const Unknown = "Unknown"

const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
)

// Info is the classification of one user agent.
type Info struct {
	Device  string
	Browser string
	OS      string
}

// Rule maps a user agent to Label when all of Any (at least one) match and
// none of Exclude match. Any entries are alternatives; All entries must all be present.
type Rule struct {
	Label   string
	Any     []string
	All     []string
	Exclude []string
}

func (r Rule) matches(ua string) bool {
	for _, token := range r.Exclude {
		if strings.Contains(ua, token) {
			return false
		}
	}
	for _, token := range r.All {
		if !strings.Contains(ua, token) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return len(r.All) > 0
	}
	for _, token := range r.Any {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}

// Rules is an ordered rule list for one dimension.
type Rules []Rule

// Match returns the label of the first matching rule, or Unknown.
func (rs Rules) Match(ua string) string {
	for _, r := range rs {
		if r.matches(ua) {
			return r.Label
		}
	}
	return Unknown
}

var (
	DeviceRules = Rules{
		{Label: DeviceTablet, Any: []string{"iPad", "Tablet", "Kindle", "Silk/"}},
		{Label: DeviceTablet, All: []string{"Android"}, Exclude: []string{"Mobile"}},
		{Label: DeviceMobile, Any: []string{"Mobi", "iPhone", "iPod", "Android", "Windows Phone"}},
		{Label: DeviceDesktop, Any: []string{"Windows NT", "Macintosh", "X11", "Linux", "CrOS"}},
	}

	OSRules = Rules{
		{Label: "Android", Any: []string{"Android"}},
		{Label: "iOS", Any: []string{"iPhone", "iPad", "iPod", "iOS"}},
		{Label: "Windows", Any: []string{"Windows"}},
		{Label: "macOS", Any: []string{"Macintosh", "Mac OS X"}},
		{Label: "Linux", Any: []string{"Linux", "X11", "CrOS"}},
	}

	BrowserRules = Rules{
		{Label: "Edge", Any: []string{"Edg/", "Edge/", "EdgA/", "EdgiOS/"}},
		{Label: "Opera", Any: []string{"OPR/", "Opera"}},
		{Label: "Firefox", Any: []string{"Firefox/", "FxiOS/"}},
		{Label: "Chrome", Any: []string{"Chrome/", "CriOS/", "Chromium/"}},
		{Label: "Safari", Any: []string{"Safari/"}, Exclude: []string{"Chrome/", "Chromium/", "CriOS/"}},
	}
)

// Parse classifies ua. An empty agent yields Unknown in every dimension.
func Parse(ua string) Info {
	return Info{
		Device:  DeviceRules.Match(ua),
		Browser: BrowserRules.Match(ua),
		OS:      OSRules.Match(ua),
	}
}
