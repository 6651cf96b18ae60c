package signal

import (
	neturl "net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Hostname reduces a URL or bare host to a lower-cased hostname without a
// leading "www.". It returns "" when no host can be found.
func Hostname(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := neturl.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// BaseDomain returns the registrable domain (eTLD+1) of a URL or host,
// falling back to the hostname when the suffix list has no answer.
func BaseDomain(raw string) string {
	host := Hostname(raw)
	if host == "" {
		return ""
	}
	base, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return base
}
