package util

import "strings"

// MaskCode masks the middle of a voucher or card code, keeping the first and
// last three characters. Codes of six characters or fewer are too short to
// partially reveal, so their middle is blanked instead. At most six asterisks
// are emitted regardless of code length.
func MaskCode(code string) string {
	if len(code) <= 6 {
		if len(code) < 3 {
			return code
		}
		return code[:1] + strings.Repeat("*", len(code)-2) + code[len(code)-1:]
	}
	middle := len(code) - 6
	if middle > 6 {
		middle = 6
	}
	return code[:3] + strings.Repeat("*", middle) + code[len(code)-3:]
}

// MaskToken shortens a session token for log output.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:8] + "..." + token[len(token)-4:]
}
