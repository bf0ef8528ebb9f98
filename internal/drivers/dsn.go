package drivers

import (
	"fmt"
	"sort"
	"strings"
)

// ParseConnectionString splits an ADO-style "key=value;key=value" string into
// a map with lower-cased, space-trimmed keys. Values keep their case. Braced
// values ({...}) may contain ';'.
func ParseConnectionString(s string) map[string]string {
	out := map[string]string{}
	var key, val strings.Builder
	inKey, inBrace := true, false

	flush := func() {
		k := strings.ToLower(strings.TrimSpace(key.String()))
		if k != "" {
			out[k] = strings.TrimSpace(val.String())
		}
		key.Reset()
		val.Reset()
		inKey = true
	}

	for _, r := range s {
		switch {
		case inKey && r == '=':
			inKey = false
		case inKey && r == ';':
			flush()
		case inKey:
			key.WriteRune(r)
		case r == '{' && val.Len() == 0:
			inBrace = true
			val.WriteRune(r)
		case r == '}' && inBrace:
			inBrace = false
			val.WriteRune(r)
		case r == ';' && !inBrace:
			flush()
		default:
			val.WriteRune(r)
		}
	}
	flush()
	return out
}

// ToDSN converts an ADO-style connection string into a DSN the Go driver for
// kind accepts. Non-empty username/password override any credentials in the
// connection string.
//
// Edge cases:
//   - ProbeSQLServer: go-mssqldb parses ADO strings natively, so the string is
//     passed through with credentials appended.
//   - ProbePostgres: Npgsql keys are mapped to libpq keyword/value pairs.
//
// Errors:
//   - Returns an error for ProbeNone or an unknown kind.
func ToDSN(kind ProbeKind, connStr, username, password string) (string, error) {
	switch kind {
	case ProbeSQLServer:
		dsn := strings.TrimRight(strings.TrimSpace(connStr), ";")
		if username != "" {
			dsn += ";user id=" + username
		}
		if password != "" {
			dsn += ";password=" + password
		}
		return dsn, nil

	case ProbePostgres:
		kv := ParseConnectionString(connStr)
		pg := map[string]string{}
		for k, v := range kv {
			switch k {
			case "host", "server":
				pg["host"] = v
			case "port":
				pg["port"] = v
			case "database", "initial catalog":
				pg["dbname"] = v
			case "user id", "userid", "username", "user", "uid":
				pg["user"] = v
			case "password", "pwd":
				pg["password"] = v
			case "ssl mode", "sslmode":
				pg["sslmode"] = strings.ToLower(v)
			}
		}
		if username != "" {
			pg["user"] = username
		}
		if password != "" {
			pg["password"] = password
		}
		keys := make([]string, 0, len(pg))
		for k := range pg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+quotePG(pg[k]))
		}
		return strings.Join(parts, " "), nil

	default:
		return "", fmt.Errorf("drivers: no local driver for probe kind %q", kind)
	}
}

func quotePG(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
