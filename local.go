package trustedproxy

// localCIDRs returns the ranges a deployment behind its own infrastructure
// may reasonably trust without configuration.
func localCIDRs() []string {
	return []string{
		"127.0.0.0/8",    // IPv4 loopback
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918
		"192.168.0.0/16", // RFC1918
		"::1/128",        // IPv6 loopback
		"fc00::/7",       // IPv6 unique local addr
		"fe80::/10",      // IPv6 link-local addr
	}
}
