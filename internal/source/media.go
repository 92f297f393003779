package source

import (
	"path/filepath"
	"strings"
)

// MediaExtensions lists the file extensions picked up when importing a directory.
var MediaExtensions = map[string]bool{
	// Audio
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".wma":  true,
	".aiff": true,

	// Video
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".ogv":  true,
}

// IsMediaFile reports whether path has a known media extension.
func IsMediaFile(path string) bool {
	return MediaExtensions[strings.ToLower(filepath.Ext(path))]
}
