package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JoahanSP/SECURENET/internal/constants"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// seq disambiguates artifacts stored within the same microsecond.
var seq atomic.Uint64

// AllowedExtension reports whether the file name carries an accepted image extension.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Sanitize reduces a client supplied file name to [A-Za-z0-9._-], dropping any
// directory part and truncating to MaxSanitizedNameLength bytes while keeping
// the extension.
func Sanitize(name string) string {
	// Clients may send Windows paths
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	ext := strings.ToLower(filterName(filepath.Ext(name)))
	stem := strings.Trim(filterName(strings.TrimSuffix(name, filepath.Ext(name))), ".")
	if stem == "" {
		stem = "image"
	}

	limit := constants.MaxSanitizedNameLength
	if len(ext) >= limit {
		ext = ""
	}
	if len(stem)+len(ext) > limit {
		stem = stem[:limit-len(ext)]
	}
	return stem + ext
}

func filterName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// artifactName builds <YYYYMMDD_HHMMSS_ffffff>_<seq>_<sanitized original>.
func artifactName(originalName string, now time.Time) string {
	n := seq.Add(1) % 10000
	return fmt.Sprintf("%s_%06d_%04d_%s",
		now.Format("20060102_150405"), now.Nanosecond()/1000, n, Sanitize(originalName))
}

// StemName returns the file name without directory and extension.
func StemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
