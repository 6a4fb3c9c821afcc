package sites

import (
	"net/http"
	"strings"
)

// conflictMarkers are repository error fragments that signal a write raced
// an existing node or a concurrent change.
var conflictMarkers = []string{
	"OakState0001",
	"Unresolved conflicts",
	"already exists",
	"OakConstraint0021",
	"javax.jcr.ItemExistsException",
}

// IsWriteConflict reports whether a failed write looks like a conflict. It
// only decides whether the overwrite path should be suggested; nothing is
// retried on its answer.
func IsWriteConflict(status int, body string) bool {
	if status == http.StatusConflict || status == http.StatusInternalServerError {
		return true
	}
	return hasConflictMarker(body)
}

func hasConflictMarker(body string) bool {
	for _, m := range conflictMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}
