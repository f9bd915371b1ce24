package utils

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageDataURI(t *testing.T) {
	payload := []byte("png bytes")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	data, contentType, ext, err := ParseImageDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "png", ext)
}

func TestParseImageDataURI_Rejects(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"empty", ""},
		{"not a data uri", "https://example.com/image.png"},
		{"wrong media type", "data:text/plain;base64,aGVsbG8="},
		{"missing base64 marker", "data:image/png,rawbytes"},
		{"bad payload", "data:image/png;base64,&&&"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := ParseImageDataURI(tt.uri)
			assert.ErrorIs(t, err, ErrInvalidDataURI)
		})
	}
}
