// Package privacy masks personal identifiers before they reach responses or
// logs. The public verification flow echoes back where a code was sent; the
// recipient must be recognizable to its owner without being recoverable by
// anyone else holding the link.
package privacy

import (
	"net"
	"strings"
)

const fullMask = "****"

// MaskPhoneNumber keeps the first two and last two characters and replaces
// the middle with asterisks, preserving the original length. Numbers shorter
// than four characters are fully masked at a fixed width so the response
// leaks neither digits nor length.
func MaskPhoneNumber(phone string) string {
	if len(phone) < 4 {
		return fullMask
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

// MaskEmail masks the local part and domain independently. The local part
// keeps its first and last character when longer than two characters; the
// domain keeps its first two and last three. Short parts are fully masked.
//
//	MaskEmail("john.doe@example.com") == "j***e@ex***com"
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]

	maskedLocal := "***"
	if len(local) > 2 {
		maskedLocal = local[:1] + "***" + local[len(local)-1:]
	}

	maskedDomain := "***"
	if len(domain) > 4 {
		maskedDomain = domain[:2] + "***" + domain[len(domain)-3:]
	}

	return maskedLocal + "@" + maskedDomain
}

// AnonymizeIP truncates an IP for logging: the final octet is zeroed for
// IPv4 and everything beyond the /48 prefix for IPv6. Invalid input maps to
// a fixed marker rather than passing through unredacted.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String() + "/24"
	}
	masked := parsed.Mask(net.CIDRMask(48, 128))
	return masked.String() + "/48"
}
