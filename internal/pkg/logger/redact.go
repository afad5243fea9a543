package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "jane.doe@acme.com" → "ja***@acme.com"
// Short local parts (≤2 chars) are fully masked: "jd@acme.com" → "***@acme.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactDSN masks the password portion of a database connection string.
// "postgres://bot:secret@db:5432/salesbot" → "postgres://bot:***@db:5432/salesbot"
// Strings without credentials are returned unchanged.
func RedactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	scheme := ""
	rest := dsn[:at]
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme = rest[:i+3]
		rest = rest[i+3:]
	}
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return dsn
	}
	return scheme + rest[:colon] + ":***" + dsn[at:]
}

// RedactKey masks an API key or secret, keeping the first four characters
// so the operator can tell which key is loaded.
func RedactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", 8)
}
