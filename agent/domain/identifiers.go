package domain

import (
	"regexp"
	"strings"
)

var (
	vehicleIDPattern = regexp.MustCompile(`(?i)\bV\d{3,}\b`)
	jobCardIDPattern = regexp.MustCompile(`(?i)\bJ\d{3,}\b`)
)

// ExtractJobCardID returns the first job card id (J001 style) in text, upper-cased.
func ExtractJobCardID(text string) string {
	return strings.ToUpper(jobCardIDPattern.FindString(text))
}

// ExtractVehicleID returns the first vehicle id (V001 style) in text, upper-cased.
func ExtractVehicleID(text string) string {
	return strings.ToUpper(vehicleIDPattern.FindString(text))
}
