package util

// MaskHostname replaces a hostname with a stable redacted form. The
// first two characters survive so operators can still tell hosts apart
// in reports and alerts when mask_data is on.
func MaskHostname(hostname string) string {
	if len(hostname) == 0 {
		return "srv-****"
	}
	if len(hostname) == 1 {
		return "srv-" + hostname + "***"
	}
	return "srv-" + hostname[:2] + "**"
}
