package fetcher

import (
	"errors"
	"strconv"
	"strings"
)

// parseNumber turns scraped rate text into a float. Pages in the wild mix
// currency symbols, spaces, and both `1,234.56` and `1 234,56` separator
// styles; the later of comma/dot wins as the decimal separator, and a lone
// separator followed by exactly three digits reads as thousands.
func parseNumber(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)

	if cleaned == "" {
		return 0, errors.New("no numeric content")
	}

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 != 3 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	return value, nil
}
