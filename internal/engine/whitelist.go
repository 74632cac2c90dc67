package engine

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Whitelisted reports whether host or its registrable domain is listed.
func Whitelisted(list []string, host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	site := registrable(host)
	for _, entry := range list {
		entry = normalizeHost(entry)
		if entry == "" {
			continue
		}
		if entry == host || entry == site || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}

// registrable returns the eTLD+1 of host, or host itself for IPs, single
// labels and public suffixes.
func registrable(host string) string {
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
