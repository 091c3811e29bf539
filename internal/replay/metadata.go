package replay

import (
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
)

// Title returns the ID3v2 title of path, falling back to the file name.
func Title(path string) string {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err == nil {
		defer tag.Close()
		title := strings.TrimSpace(tag.Title())
		if artist := strings.TrimSpace(tag.Artist()); artist != "" && title != "" {
			return artist + " - " + title
		}
		if title != "" {
			return title
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
