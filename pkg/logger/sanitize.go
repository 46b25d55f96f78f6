package logger

import "strings"

// MaskUsername masks a username for logging: keeps the first character,
// masks the rest (e.g. "j***"). Empty usernames come back unchanged.
func MaskUsername(username string) string {
	if len(username) <= 1 {
		return username
	}
	return string(username[0]) + strings.Repeat("*", len(username)-1)
}

// SanitizeQueryString reports whether a raw query string contains sensitive
// parameters that must not be logged verbatim.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"client_secret",
		"api_key",
		"apikey",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
