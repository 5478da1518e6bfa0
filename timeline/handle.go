package timeline

import (
	"regexp"
	"strings"

	"github.com/use-agent/xfeed/models"
)

// handlePattern is the set of handles the site allows.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeHandle trims whitespace and leading '@' characters and lowercases
// raw. It returns an INVALID_INPUT ScrapeError when the result is not a
// possible handle.
func NormalizeHandle(raw string) (string, error) {
	h := strings.ToLower(strings.TrimLeft(strings.TrimSpace(raw), "@"))
	if !handlePattern.MatchString(h) {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "invalid handle: "+raw, nil)
	}
	return h, nil
}
