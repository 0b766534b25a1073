package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		size      int
		reason    string
	}{
		{name: "small png", mediaType: "image/png", size: 10},
		{name: "exactly the limit", mediaType: "image/jpeg", size: MaxSize},
		{name: "one byte over", mediaType: "image/png", size: MaxSize + 1, reason: tooLargeReason},
		{name: "well over", mediaType: "image/png", size: MaxSize * 2, reason: tooLargeReason},
		{name: "not an image", mediaType: "application/pdf", size: 10, reason: notAnImageReason},
		{name: "missing type", mediaType: "", size: 10, reason: notAnImageReason},
		{name: "oversized pdf reports type first", mediaType: "application/pdf", size: MaxSize + 1, reason: notAnImageReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Select("photo", tt.mediaType, bytes.NewReader(make([]byte, tt.size)))
			if tt.reason != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, gateway.ErrValidation)
				assert.EqualError(t, err, tt.reason)
				assert.Nil(t, a)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, a.Size())
			assert.Equal(t, tt.mediaType, a.MediaType)
		})
	}
}

func TestSelectFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/logo.png", pngBytes(t, 3, 2), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/notes.txt", []byte("hello"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/noext", pngBytes(t, 1, 1), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/huge.png", make([]byte, MaxSize+1), 0o644))

	a, err := SelectFile(fs, "/in/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "logo.png", a.Filename)
	assert.Equal(t, "image/png", a.MediaType)
	w, h, err := a.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)

	a, err = SelectFile(fs, "/in/noext")
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.MediaType)

	_, err = SelectFile(fs, "/in/notes.txt")
	assert.EqualError(t, err, notAnImageReason)

	_, err = SelectFile(fs, "/in/huge.png")
	assert.EqualError(t, err, tooLargeReason)

	_, err = SelectFile(fs, "/in/missing.png")
	assert.Error(t, err)
}

func TestPreviewAndClear(t *testing.T) {
	a, err := Select("x.png", "image/png", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,YWJj", a.PreviewDataURL())

	_, _, err = a.Dimensions()
	assert.Error(t, err)

	a.Clear()
	assert.True(t, a.Empty())
	assert.Nil(t, a.Data())
}

func TestPicker(t *testing.T) {
	var p Picker
	assert.Nil(t, p.Pending())

	require.NoError(t, p.Pick("a.png", "image/png", strings.NewReader("first")))
	require.NotNil(t, p.Pending())

	// a rejected file keeps the previous choice
	err := p.Pick("b.pdf", "application/pdf", strings.NewReader("second"))
	require.Error(t, err)
	assert.Equal(t, "a.png", p.Pending().Filename)

	p.Clear()
	assert.Nil(t, p.Pending())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
