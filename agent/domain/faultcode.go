package domain

import (
	"regexp"
	"strings"
)

var obdCodePattern = regexp.MustCompile(`\b[PCBUpcbu][0-9A-Fa-f]{4}\b`)

// NormalizeFaultCode strips any trailing description after the code token,
// e.g. "P0301 - Cylinder 1 Misfire" -> "P0301".
func NormalizeFaultCode(raw string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		switch r {
		case ' ', '\t', '-', ':', ',', ';', '–', '—', '(':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// NormalizeFaultCodes normalizes, drops empties and dedupes while keeping order.
func NormalizeFaultCodes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		code := NormalizeFaultCode(r)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// ExtractFaultCodes finds OBD-II style codes anywhere in free text.
func ExtractFaultCodes(text string) []string {
	return NormalizeFaultCodes(obdCodePattern.FindAllString(text, -1))
}
