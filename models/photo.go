package models

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
)

// PublicUploadPrefix is the mount point under which stored images are served.
const PublicUploadPrefix = "/uploads/"

// EncodeImagePaths packs the stored file paths into the single text value
// persisted in Product.Photo.
func EncodeImagePaths(paths []string) (string, error) {
	b, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("encode image paths: %w", err)
	}
	return string(b), nil
}

// DecodeImagePaths parses a stored Product.Photo value back into public
// image URLs, in stored order. A value that is not a valid JSON string list
// is reported as an error so corrupt rows surface on read instead of being
// masked by an empty list.
func DecodeImagePaths(stored string) ([]string, error) {
	var paths []string
	if err := json.Unmarshal([]byte(stored), &paths); err != nil {
		return nil, fmt.Errorf("decode image paths: %w", err)
	}
	urls := make([]string, len(paths))
	for i, p := range paths {
		urls[i] = PublicUploadPrefix + path.Base(filepath.ToSlash(p))
	}
	return urls, nil
}
