package utils

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidDataURI = errors.New("invalid image data URI")

// ParseImageDataURI decodes a self-describing inline image payload of the
// form "data:image/png;base64,<payload>". Returns the raw bytes, the content
// type and the file extension.
func ParseImageDataURI(uri string) ([]byte, string, string, error) {
	if !strings.HasPrefix(uri, "data:image/") {
		return nil, "", "", ErrInvalidDataURI
	}

	meta, payload, found := strings.Cut(uri, ";base64,")
	if !found {
		return nil, "", "", ErrInvalidDataURI
	}

	contentType := strings.TrimPrefix(meta, "data:")
	ext := strings.TrimPrefix(contentType, "image/")
	if ext == "" {
		return nil, "", "", ErrInvalidDataURI
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", "", ErrInvalidDataURI
	}
	return data, contentType, ext, nil
}
