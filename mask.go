package havenAuth

import "strings"

// MaskEmail hides most of the local part of email for logs. Up to three
// leading characters stay visible, followed by at least two '*'. Input
// without a local part and a domain is returned unchanged.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return email
	}

	runes := []rune(local)
	visible := min(3, len(runes))
	stars := max(2, len(runes)-visible)
	return string(runes[:visible]) + strings.Repeat("*", stars) + "@" + domain
}
