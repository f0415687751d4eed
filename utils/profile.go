package utils

import (
	"github.com/gosimple/slug"
)

// ProfileLink derives the local profile URL for a username.
// Slugified so display names with spaces or non-ASCII stay routable.
func ProfileLink(username string) string {
	return "/u/" + slug.Make(username)
}
