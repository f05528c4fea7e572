package manifest

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// canonicalValue prepares a free-text field for the annotation block.
//
// Strings are NFC normalized at the serialization boundary so that
// visually identical references produce identical bytes. Line breaks are
// rejected because every field must occupy exactly one line.
func canonicalValue(field, s string) (string, error) {
	normalized := norm.NFC.String(strings.TrimSpace(s))
	if strings.ContainsAny(normalized, "\r\n") {
		return "", fmt.Errorf("%s must be a single line", field)
	}
	return normalized, nil
}
