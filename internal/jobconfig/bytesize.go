// Package jobconfig parses and writes backup job files: an INI-like format
// with a default section plus repeatable [schedule] and [persistence <type>]
// sections (grounded on jobs.c's JOB_CONFIG_VALUES table).
package jobconfig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// byteUnits mirrors CONFIG_VALUE_BYTES_UNITS: binary (1024-based) multipliers
// keyed by the suffix letter a value may carry (archive-part-size and friends).
var byteUnits = map[string]int64{
	"":  1,
	"K": 1024,
	"M": 1024 * 1024,
	"G": 1024 * 1024 * 1024,
	"T": 1024 * 1024 * 1024 * 1024,
}

var byteSizePattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([KMGT]?)B?$`)

// ParseByteSize parses a size with an optional K/M/G/T suffix (case
// insensitive, trailing "B" tolerated) into a byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	m := byteSizePattern.FindStringSubmatch(strings.ToUpper(s))
	if m == nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return int64(value * float64(byteUnits[m[2]])), nil
}

// FormatByteSize renders n using the largest unit that divides it evenly,
// matching CONFIG_VALUE_BYTES_UNITS's format direction.
func FormatByteSize(n int64) string {
	switch {
	case n != 0 && n%byteUnits["T"] == 0:
		return strconv.FormatInt(n/byteUnits["T"], 10) + "T"
	case n != 0 && n%byteUnits["G"] == 0:
		return strconv.FormatInt(n/byteUnits["G"], 10) + "G"
	case n != 0 && n%byteUnits["M"] == 0:
		return strconv.FormatInt(n/byteUnits["M"], 10) + "M"
	case n != 0 && n%byteUnits["K"] == 0:
		return strconv.FormatInt(n/byteUnits["K"], 10) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}
