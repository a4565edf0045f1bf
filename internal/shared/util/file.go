package util

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".webm": {}, ".flv": {}, ".wmv": {},
}

// IsVideoFileName reports whether the file name carries a known video extension.
func IsVideoFileName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := videoExtensions[ext]
	return ok
}

// FormatBytes renders a byte count in human-readable form.
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	exp := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if exp >= len(units) {
		exp = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(exp))
	return fmt.Sprintf("%.2f %s", value, units[exp])
}
