package release

import (
	"fmt"
	"strings"
)

// VersionNotFoundError reports that no strategy found a version on the
// listing page. Title and Tags describe the page for offline diagnosis.
type VersionNotFoundError struct {
	URL   string
	Title string
	Tags  []string
}

func (e *VersionNotFoundError) Error() string {
	title := e.Title
	if title == "" {
		title = "no title"
	}
	return fmt.Sprintf("no release version found at %s (page title %q, leading elements [%s])",
		e.URL, title, strings.Join(e.Tags, " "))
}
