package images

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
)

// MaxSize is the largest payload the API accepts for a product image
const MaxSize = 5 << 20

const (
	notAnImageReason = "Please select an image file"
	tooLargeReason   = "Image size should be less than 5MB"
)

// Attachment is a validated image waiting to be sent with a product
// create or update. It lives only in memory.
type Attachment struct {
	Filename  string
	MediaType string
	data      []byte
}

// Select validates a candidate image. The media type is checked before any
// of the payload is read.
func Select(filename, mediaType string, r io.Reader) (*Attachment, error) {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, gateway.Invalid("image", notAnImageReason)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSize {
		return nil, gateway.Invalid("image", tooLargeReason)
	}

	return &Attachment{
		Filename:  filepath.Base(filename),
		MediaType: mediaType,
		data:      data,
	}, nil
}

// SelectFile opens path on fs and validates it. The media type comes from
// the file extension, falling back to content sniffing.
func SelectFile(fs afero.Fs, path string) (*Attachment, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		head := make([]byte, 512)
		n, err := io.ReadFull(f, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		mediaType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}

	return Select(path, mediaType, f)
}

// Data returns the raw payload
func (a *Attachment) Data() []byte {
	return a.data
}

func (a *Attachment) Size() int {
	return len(a.data)
}

// Empty reports whether the attachment holds nothing to send
func (a *Attachment) Empty() bool {
	return a == nil || len(a.data) == 0
}

// PreviewDataURL encodes the payload as a data: URI
func (a *Attachment) PreviewDataURL() string {
	return "data:" + a.MediaType + ";base64," + base64.StdEncoding.EncodeToString(a.data)
}

// Dimensions decodes the image header. Formats other than png, jpeg and gif
// return an error.
func (a *Attachment) Dimensions() (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(a.data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Clear drops the payload
func (a *Attachment) Clear() {
	a.data = nil
}

// Picker holds at most one pending attachment for a form
type Picker struct {
	pending *Attachment
}

// Pick validates and stores a new attachment, replacing any previous one.
// On failure the previous attachment is kept.
func (p *Picker) Pick(filename, mediaType string, r io.Reader) error {
	a, err := Select(filename, mediaType, r)
	if err != nil {
		return err
	}
	p.pending = a
	return nil
}

// Pending returns the current attachment or nil
func (p *Picker) Pending() *Attachment {
	if p.pending.Empty() {
		return nil
	}
	return p.pending
}

func (p *Picker) Clear() {
	if p.pending != nil {
		p.pending.Clear()
	}
	p.pending = nil
}
