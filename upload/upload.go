// Package upload stores multipart image attachments on disk and hands back
// their stored paths.
package upload

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MaxFiles caps how many photos a single request may carry.
const MaxFiles = 10

var (
	ErrUnsupportedType = errors.New("only PNG, JPG or JPEG images are allowed")
	ErrTooManyFiles    = fmt.Errorf("at most %d photos per request", MaxFiles)
)

var allowedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
}

// Save validates every attached file and writes each one into dir under a
// generated name. Either all files pass validation or nothing is written.
// Stored relative paths are returned in request order. A failure while
// writing aborts the request; files already written stay on disk.
func Save(c *fiber.Ctx, dir string, files []*multipart.FileHeader) ([]string, error) {
	if err := validate(files); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		dst := filepath.Join(dir, storedName(file.Filename))
		if err := c.SaveFile(file, dst); err != nil {
			return nil, fmt.Errorf("save %s: %w", file.Filename, err)
		}
		paths = append(paths, filepath.ToSlash(dst))
	}
	return paths, nil
}

// validate checks every file against the image allow-list. Both the file
// extension and the declared content type must match.
func validate(files []*multipart.FileHeader) error {
	if len(files) > MaxFiles {
		return ErrTooManyFiles
	}
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Filename))
		mime := strings.ToLower(file.Header.Get("Content-Type"))
		if !allowedExts[ext] || !allowedTypes[mime] {
			return fmt.Errorf("%s: %w", file.Filename, ErrUnsupportedType)
		}
	}
	return nil
}

// storedName builds a unique filename from a wall-clock discriminator and a
// random suffix, keeping the original extension. Concurrent uploads within
// the same millisecond still get distinct names.
func storedName(original string) string {
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.New().String(), strings.ToLower(filepath.Ext(original)))
}
