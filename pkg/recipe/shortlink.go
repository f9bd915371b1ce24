package recipe

import (
	"io"
)

const (
	shortLinkAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	shortLinkLength   = 6

	// Largest multiple of len(shortLinkAlphabet) that fits in a byte;
	// bytes at or above it are redrawn so tokens stay uniform.
	shortLinkByteLimit = 248
)

// generateShortLink draws candidate tokens from src until one passes the
// exists check. The caller persists the winner; the unique short_link
// column is the backstop against two requests racing for the same token.
func generateShortLink(src io.Reader, exists func(string) (bool, error)) (string, error) {
	token := make([]byte, shortLinkLength)
	buf := make([]byte, 1)

	for {
		for i := 0; i < shortLinkLength; {
			if _, err := io.ReadFull(src, buf); err != nil {
				return "", err
			}
			if buf[0] >= shortLinkByteLimit {
				continue
			}
			token[i] = shortLinkAlphabet[int(buf[0])%len(shortLinkAlphabet)]
			i++
		}

		taken, err := exists(string(token))
		if err != nil {
			return "", err
		}
		if !taken {
			return string(token), nil
		}
	}
}
