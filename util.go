package haven

import (
	"net/http"
	"regexp"
)

// HTTPDoer is an interface for making HTTP requests.
// It is implemented by *http.Client and can be mocked in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// entityIDRegex validates platform entity ids: a domain and an object id
// separated by a dot, lowercase alphanumeric and underscores.
var entityIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z0-9][a-z0-9_]*$`)

// ValidEntityID reports whether id is a well-formed entity id.
func ValidEntityID(id string) bool {
	return entityIDRegex.MatchString(id)
}
