package entities

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldKey returns the case-folded form of a business key used for uniqueness.
func FoldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
