package events

import (
	"net/url"
	"strings"
)

const SourceDirect = "direct"

// Attribution describes where a visit came from.
type Attribution struct {
	TrafficSource string `json:"trafficSource"`
	UTMSource     string `json:"utmSource,omitempty"`
	UTMMedium     string `json:"utmMedium,omitempty"`
	UTMCampaign   string `json:"utmCampaign,omitempty"`
	ReferrerHost  string `json:"referrerHost,omitempty"`
}

// Attribute derives the traffic source from UTM parameters and the referrer.
// UTM parameters win over the referrer; no signal at all means "direct".
func Attribute(utmSource, utmMedium, utmCampaign, referrer string) Attribution {
	a := Attribution{
		UTMSource:   strings.TrimSpace(utmSource),
		UTMMedium:   strings.TrimSpace(utmMedium),
		UTMCampaign: strings.TrimSpace(utmCampaign),
	}
	if referrer != "" {
		if u, err := url.Parse(referrer); err == nil {
			a.ReferrerHost = u.Host
		}
	}

	switch {
	case a.UTMSource != "" && a.UTMMedium != "":
		a.TrafficSource = a.UTMSource + ":" + a.UTMMedium
	case a.UTMSource != "":
		a.TrafficSource = a.UTMSource
	case a.ReferrerHost != "":
		a.TrafficSource = "referral:" + a.ReferrerHost
	default:
		a.TrafficSource = SourceDirect
	}
	return a
}

// AttributeURL reads the utm_* query parameters of a landing URL.
func AttributeURL(landing, referrer string) Attribution {
	u, err := url.Parse(landing)
	if err != nil {
		return Attribute("", "", "", referrer)
	}
	q := u.Query()
	return Attribute(q.Get("utm_source"), q.Get("utm_medium"), q.Get("utm_campaign"), referrer)
}

// Apply stamps the attribution onto an event that has none.
func (a Attribution) Apply(e Event) Event {
	if e.TrafficSource == "" {
		e.TrafficSource = a.TrafficSource
	}
	if e.UTMSource == "" {
		e.UTMSource = a.UTMSource
	}
	if e.UTMMedium == "" {
		e.UTMMedium = a.UTMMedium
	}
	if e.UTMCampaign == "" {
		e.UTMCampaign = a.UTMCampaign
	}
	if e.ReferrerHost == "" {
		e.ReferrerHost = a.ReferrerHost
	}
	return e
}
