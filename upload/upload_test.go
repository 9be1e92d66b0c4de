package upload

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(filename, contentType string) *multipart.FileHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", contentType)
	return &multipart.FileHeader{Filename: filename, Header: h}
}

func TestValidateAllowList(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantErr     bool
	}{
		{"png", "cat.png", "image/png", false},
		{"jpg", "cat.jpg", "image/jpeg", false},
		{"jpeg", "cat.jpeg", "image/jpeg", false},
		{"uppercase extension", "CAT.PNG", "image/png", false},
		{"gif", "cat.gif", "image/gif", true},
		{"good extension, wrong type", "cat.png", "application/pdf", true},
		{"good type, wrong extension", "cat.pdf", "image/png", true},
		{"no extension", "cat", "image/png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate([]*multipart.FileHeader{header(tt.filename, tt.contentType)})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedType)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOneBadFileFailsAll(t *testing.T) {
	files := []*multipart.FileHeader{
		header("ok.png", "image/png"),
		header("bad.gif", "image/gif"),
	}
	err := validate(files)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Contains(t, err.Error(), "bad.gif")
}

func TestValidateFileCap(t *testing.T) {
	files := make([]*multipart.FileHeader, MaxFiles+1)
	for i := range files {
		files[i] = header(fmt.Sprintf("f%d.png", i), "image/png")
	}
	assert.ErrorIs(t, validate(files), ErrTooManyFiles)

	assert.NoError(t, validate(files[:MaxFiles]))
}

func TestStoredNameUniqueUnderConcurrency(t *testing.T) {
	const n = 200
	names := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names <- storedName("same.png")
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool, n)
	for name := range names {
		assert.False(t, seen[name], "duplicate generated name %s", name)
		assert.True(t, strings.HasSuffix(name, ".png"))
		seen[name] = true
	}
	assert.Len(t, seen, n)
}

func TestSaveWritesFilesInRequestOrder(t *testing.T) {
	dir := t.TempDir()
	app := fiber.New()

	var paths []string
	app.Post("/up", func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return err
		}
		paths, err = Save(c, dir, form.File["photos"])
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		return c.SendStatus(fiber.StatusOK)
	})

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	addPhoto(t, w, "first.png", "image/png", []byte("png-bytes"))
	addPhoto(t, w, "second.jpg", "image/jpeg", []byte("jpg-bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/up", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, paths, 2)
	assert.True(t, strings.HasSuffix(paths[0], ".png"), "got %s", paths[0])
	assert.True(t, strings.HasSuffix(paths[1], ".jpg"), "got %s", paths[1])

	content, err := os.ReadFile(filepath.FromSlash(paths[0]))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), content)
}

func TestSaveRejectsBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	app := fiber.New()

	app.Post("/up", func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return err
		}
		if _, err := Save(c, dir, form.File["photos"]); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		return c.SendStatus(fiber.StatusOK)
	})

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	addPhoto(t, w, "ok.png", "image/png", []byte("png-bytes"))
	addPhoto(t, w, "nope.gif", "image/gif", []byte("gif-bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/up", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing should be written when validation fails")
}

func addPhoto(t *testing.T, w *multipart.Writer, filename, contentType string, content []byte) {
	t.Helper()
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
}
