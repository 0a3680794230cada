package filters

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/quire/internal/ir"
)

func normalizeNFC(s string, _ ir.IRObject, _ Assigns) (string, error) {
	return norm.NFC.String(s), nil
}

// trim strips surrounding whitespace. With params {"cutset": "..."} it strips
// those characters instead.
func trim(s string, params ir.IRObject, _ Assigns) (string, error) {
	if cutset := params.String("cutset"); cutset != "" {
		return strings.Trim(s, cutset), nil
	}
	return strings.TrimSpace(s), nil
}
