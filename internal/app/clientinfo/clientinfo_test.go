package clientinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeWindows  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	safariMac      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	safariIPhone   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	chromeAndroid  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
	androidTablet  = "Mozilla/5.0 (Linux; Android 13; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	firefoxLinux   = "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0"
	edgeWindows    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51"
	operaMac       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 OPR/109.0.0.0"
	chromeIOS      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/124.0.6367.88 Mobile/15E148 Safari/604.1"
	ipadSafari     = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	curlAgent      = "curl/8.5.0"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want Info
	}{
		{name: "chrome on windows", ua: chromeWindows, want: Info{Device: DeviceDesktop, Browser: "Chrome", OS: "Windows"}},
		{name: "safari on mac", ua: safariMac, want: Info{Device: DeviceDesktop, Browser: "Safari", OS: "macOS"}},
		{name: "iphone is ios not macos", ua: safariIPhone, want: Info{Device: DeviceMobile, Browser: "Safari", OS: "iOS"}},
		{name: "android is android not linux", ua: chromeAndroid, want: Info{Device: DeviceMobile, Browser: "Chrome", OS: "Android"}},
		{name: "android without mobile token is a tablet", ua: androidTablet, want: Info{Device: DeviceTablet, Browser: "Chrome", OS: "Android"}},
		{name: "ipad", ua: ipadSafari, want: Info{Device: DeviceTablet, Browser: "Safari", OS: "iOS"}},
		{name: "firefox on linux", ua: firefoxLinux, want: Info{Device: DeviceDesktop, Browser: "Firefox", OS: "Linux"}},
		{name: "edge carries chrome token", ua: edgeWindows, want: Info{Device: DeviceDesktop, Browser: "Edge", OS: "Windows"}},
		{name: "opera carries chrome token", ua: operaMac, want: Info{Device: DeviceDesktop, Browser: "Opera", OS: "macOS"}},
		{name: "chrome on ios carries safari token", ua: chromeIOS, want: Info{Device: DeviceMobile, Browser: "Chrome", OS: "iOS"}},
		{name: "cli client", ua: curlAgent, want: Info{Device: Unknown, Browser: Unknown, OS: Unknown}},
		{name: "empty", ua: "", want: Info{Device: Unknown, Browser: Unknown, OS: Unknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.ua))
		})
	}
}

func TestRules_FirstMatchWins(t *testing.T) {
	rules := Rules{
		{Label: "first", Any: []string{"token"}},
		{Label: "second", Any: []string{"token"}},
	}
	assert.Equal(t, "first", rules.Match("a token here"))
	assert.Equal(t, Unknown, rules.Match("nothing"))
}

func TestRule_ExcludeVetoesMatch(t *testing.T) {
	r := Rule{Label: "Safari", Any: []string{"Safari/"}, Exclude: []string{"Chrome/"}}
	assert.False(t, r.matches(chromeWindows))
	assert.True(t, r.matches(safariMac))
}
