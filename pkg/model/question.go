package model

import (
	"encoding/base64"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// MaxImageSize is the maximum decoded size of a question image
const MaxImageSize = 4 * 1024 * 1024

// Question is a survey question given as text, an image, or both
type Question struct {
	Text  string
	Image *Image
}

// HasText reports whether the question carries non-blank text
func (q Question) HasText() bool {
	return strings.TrimSpace(q.Text) != ""
}

// Label returns the text shown to a user for the question
func (q Question) Label() string {
	if q.HasText() {
		return q.Text
	}
	return ImageQuestionPlaceholder
}

// Image is a decoded question screenshot
type Image struct {
	MIMEType string
	Data     []byte
}

// ParseDataURI decodes "data:<mimetype>;base64,<data>" into an Image
func ParseDataURI(uri string) (*Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, goerr.Wrap(ErrInvalidInput, "image is not a data URI")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, goerr.Wrap(ErrInvalidInput, "data URI has no payload")
	}

	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, goerr.Wrap(ErrInvalidInput, "data URI must be base64 encoded", goerr.V("meta", meta))
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidInput, "failed to decode data URI payload", goerr.V("error", err.Error()))
	}

	img := &Image{MIMEType: mimeType, Data: data}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Validate checks the MIME type and size limit of the image
func (img *Image) Validate() error {
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return goerr.Wrap(ErrInvalidInput, "unsupported image type", goerr.V("mime_type", img.MIMEType))
	}
	if len(img.Data) == 0 {
		return goerr.Wrap(ErrInvalidInput, "image is empty")
	}
	if len(img.Data) > MaxImageSize {
		return goerr.Wrap(ErrInvalidInput, "image is too large",
			goerr.V("size", len(img.Data)),
			goerr.V("max", MaxImageSize))
	}
	return nil
}

// DataURI encodes the image back to a base64 data URI
func (img *Image) DataURI() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
