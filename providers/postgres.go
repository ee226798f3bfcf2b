package providers

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// normalizePostgres maps the text forms lib/pq and pgx return for types
// they do not decode themselves. NUMERIC becomes float64, INTERVAL a
// duration counting a month as 30 days, and UUID or any other textual
// column a string. BYTEA stays raw.
func normalizePostgres(dbType string, v any) any {
	var text string
	switch t := v.(type) {
	case []byte:
		text = string(t)
	case string:
		text = t
	default:
		return v
	}

	switch dbType {
	case "BYTEA":
		return v
	case "NUMERIC", "DECIMAL":
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	case "INTERVAL":
		if d, err := parsePostgresInterval(text); err == nil {
			return d
		}
	}
	return text
}

// parsePostgresInterval parses the default "postgres" IntervalStyle output,
// for example "1 year 2 mons -3 days 04:05:06.5".
func parsePostgresInterval(s string) (time.Duration, error) {
	const day = 24 * time.Hour

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty interval")
	}

	var total time.Duration
	for i := 0; i < len(fields); i++ {
		if strings.Contains(fields[i], ":") {
			d, err := parseClock(fields[i])
			if err != nil {
				return 0, fmt.Errorf("invalid interval %q: %w", s, err)
			}
			total += d
			continue
		}
		if i+1 >= len(fields) {
			return 0, fmt.Errorf("invalid interval %q: missing unit", s)
		}
		n, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		i++
		switch strings.TrimSuffix(fields[i], "s") {
		case "year":
			total += time.Duration(n) * 360 * day
		case "mon":
			total += time.Duration(n) * 30 * day
		case "day":
			total += time.Duration(n) * day
		default:
			return 0, fmt.Errorf("invalid interval %q: unknown unit %s", s, fields[i])
		}
	}
	return total, nil
}

// parseClock parses [-]HH:MM:SS[.ffffff].
func parseClock(s string) (time.Duration, error) {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad time %q", s)
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, err
	}
	secPart, fracPart, _ := strings.Cut(parts[2], ".")
	seconds, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return 0, err
	}
	var nanos int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		nanos, err = strconv.ParseInt(fracPart+strings.Repeat("0", 9-len(fracPart)), 10, 64)
		if err != nil {
			return 0, err
		}
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second + time.Duration(nanos)
	if negative {
		d = -d
	}
	return d, nil
}
