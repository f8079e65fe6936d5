package catalog

import (
	"path"
	"regexp"
	"strings"

	"github.com/mrlokans/moneta/internal/config"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f]`)
	multipleSpaces       = regexp.MustCompile(`\s+`)
)

// contentExtensions are the formats the reader page can serve.
var contentExtensions = []string{".pdf", ".epub", ".txt"}

const maxFilenameLength = 200

// ContentFilename turns a submitted content path into the stored file name.
// Directories are dropped, so a client path like C:\books\dune.pdf becomes
// dune.pdf. Anything without a supported extension falls back to the
// placeholder.
func ContentFilename(raw string) string {
	name := strings.ReplaceAll(raw, `\`, "/")
	name = path.Base(name)

	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = multipleSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	ext := ""
	lower := strings.ToLower(name)
	for _, known := range contentExtensions {
		if strings.HasSuffix(lower, known) {
			ext = known
			break
		}
	}
	stem := strings.TrimSpace(name[:len(name)-len(ext)])
	if ext == "" || stem == "" || stem == "." || stem == ".." {
		return config.PlaceholderContent
	}

	if len(stem) > maxFilenameLength {
		stem = strings.TrimSpace(stem[:maxFilenameLength])
	}
	return stem + ext
}
