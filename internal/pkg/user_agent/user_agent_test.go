package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pagebeacon/internal/pkg/user_agent"
	"pagebeacon/internal/testsupport"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name        string
		userAgent   string
		wantDevice  string
		wantOS      string
		wantBrowser string
		wantBot     bool
	}{
		{
			name:        "chrome on windows desktop",
			userAgent:   testsupport.UAChromeWindows,
			wantDevice:  user_agent.DeviceDesktop,
			wantOS:      "Windows",
			wantBrowser: "Chrome",
		},
		{
			name:        "edge token wins over chrome",
			userAgent:   testsupport.UAEdgeWindows,
			wantDevice:  user_agent.DeviceDesktop,
			wantOS:      "Windows",
			wantBrowser: "Edge",
		},
		{
			name:        "safari on mac",
			userAgent:   testsupport.UASafariMac,
			wantDevice:  user_agent.DeviceDesktop,
			wantOS:      "macOS",
			wantBrowser: "Safari",
		},
		{
			name:        "firefox on linux",
			userAgent:   testsupport.UAFirefoxLinux,
			wantDevice:  user_agent.DeviceDesktop,
			wantOS:      "Linux",
			wantBrowser: "Firefox",
		},
		{
			name:        "iphone is mobile",
			userAgent:   testsupport.UAiPhone,
			wantDevice:  user_agent.DeviceMobile,
			wantOS:      "iOS",
			wantBrowser: "Safari",
		},
		{
			name:        "ipad is tablet not mobile",
			userAgent:   testsupport.UAiPad,
			wantDevice:  user_agent.DeviceTablet,
			wantOS:      "iOS",
			wantBrowser: "Safari",
		},
		{
			name:        "android phone",
			userAgent:   testsupport.UAAndroid,
			wantDevice:  user_agent.DeviceMobile,
			wantOS:      "Android",
			wantBrowser: "Chrome",
		},
		{
			name:        "googlebot flagged as bot",
			userAgent:   testsupport.UAGooglebot,
			wantDevice:  user_agent.DeviceBot,
			wantOS:      user_agent.Other,
			wantBrowser: user_agent.Other,
			wantBot:     true,
		},
		{
			name:        "headless browser flagged as bot",
			userAgent:   "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/123.0.0.0",
			wantDevice:  user_agent.DeviceBot,
			wantOS:      "Linux",
			wantBrowser: "Chrome",
			wantBot:     true,
		},
		{
			name:        "empty string falls back to desktop and other",
			userAgent:   "",
			wantDevice:  user_agent.DeviceDesktop,
			wantOS:      user_agent.Other,
			wantBrowser: user_agent.Other,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := user_agent.ParseUserAgent(tt.userAgent)
			assert.Equal(t, tt.userAgent, got.UserAgent)
			assert.Equal(t, tt.wantDevice, got.Device)
			assert.Equal(t, tt.wantOS, got.OS)
			assert.Equal(t, tt.wantBrowser, got.Browser)
			assert.Equal(t, tt.wantBot, got.Bot)
		})
	}
}
