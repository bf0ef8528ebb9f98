package cmdline

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	dateTimeLayout = "2006-01-02T15:04:05"
	dateLayout     = "2006-01-02"
)

// ParseValue coerces the value half of a key=value parameter.
//
// A value containing ',' becomes a []any whose elements are coerced one by
// one (empty elements are dropped). Otherwise the value goes through
// ConvertValue.
func ParseValue(value string) (any, error) {
	if !strings.Contains(value, ",") {
		return ConvertValue(value)
	}
	var out []any
	for _, elem := range strings.Split(value, ",") {
		if elem == "" {
			continue
		}
		v, err := ConvertValue(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ConvertValue coerces a single literal:
//
//	I'42          -> int64
//	F'3.14        -> float64
//	D'2020-01-01  -> time.Time (UTC), also yyyy-MM-ddTHH:mm:ss
//	anything else -> string with \n and \t expanded
func ConvertValue(value string) (any, error) {
	switch {
	case strings.HasPrefix(value, "I'"):
		n, err := strconv.ParseInt(value[2:], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse integer from %s", value[2:])
		}
		return n, nil

	case strings.HasPrefix(value, "F'"):
		f, err := strconv.ParseFloat(value[2:], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse float from %s", value[2:])
		}
		return f, nil

	case strings.HasPrefix(value, "D'"):
		return parseDate(value[2:])
	}

	value = strings.ReplaceAll(value, `\n`, "\n")
	value = strings.ReplaceAll(value, `\t`, "\t")
	return value, nil
}

// parseDate accepts a leading yyyy-MM-ddTHH:mm:ss or yyyy-MM-dd; trailing
// characters (such as a closing quote) are ignored.
func parseDate(s string) (time.Time, error) {
	if len(s) >= len(dateTimeLayout) {
		if t, err := time.Parse(dateTimeLayout, s[:len(dateTimeLayout)]); err == nil {
			return t.UTC(), nil
		}
	}
	if len(s) >= len(dateLayout) {
		if t, err := time.Parse(dateLayout, s[:len(dateLayout)]); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("could not parse yyyy-MM-dd[THH:mm:ss] date from %s", s)
}
