// Package job prepares and runs backend-triggered generation jobs.
//
// A job takes a request file (speech text plus optional overrides), combines
// it with an avatar template and image, writes the generator input JSON into
// a per-job work directory and launches the generator in TTS mode.
package job

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// SelectAvatarAssets picks the avatar template JSON and image from dir.
// Entries are considered in name order; the first match of each kind wins.
func SelectAvatarAssets(dir string) (jsonPath, imagePath string, err error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", "", fmt.Errorf("avatar directory not found: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("failed to read avatar directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		path := filepath.Join(dir, e.Name())
		switch {
		case strings.HasSuffix(lower, ".json"):
			if jsonPath == "" {
				jsonPath = path
			}
		case isImage(lower):
			if imagePath == "" {
				imagePath = path
			}
		}
	}

	if jsonPath == "" || imagePath == "" {
		return "", "", fmt.Errorf("avatar directory must contain one json and one image file: %s", dir)
	}
	return jsonPath, imagePath, nil
}

func isImage(name string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
