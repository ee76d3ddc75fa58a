package upload

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// TextMode selects how non-binary files are turned into upload payloads.
type TextMode string

// Text modes.
const (
	// TextReplace decodes as UTF-8, substituting U+FFFD for invalid
	// sequences, and re-encodes the text.
	TextReplace TextMode = "replace"

	// TextStrict refuses files that are not valid UTF-8.
	TextStrict TextMode = "strict"

	// TextRaw uploads the bytes unchanged.
	TextRaw TextMode = "raw"
)

// ErrInvalidText is returned in strict mode for files that are not valid UTF-8.
var ErrInvalidText = errors.New("upload: file is not valid UTF-8 text")

// payload is the content to send for one file.
type payload struct {
	data []byte

	// lossy is true when decoding replaced invalid sequences.
	lossy bool
}

// encodePayload turns file bytes into the upload payload. Binary files and
// raw mode pass through. The other modes round-trip the bytes through a
// UTF-8 text decoding.
func encodePayload(data []byte, isBinary bool, mode TextMode) (payload, error) {
	if isBinary || mode == TextRaw {
		return payload{data: data}, nil
	}

	if utf8.Valid(data) {
		return payload{data: data}, nil
	}

	switch mode {
	case TextStrict:
		return payload{}, ErrInvalidText
	case TextReplace, "":
		decoded, err := unicode.UTF8.NewDecoder().Bytes(data)
		if err != nil {
			return payload{}, fmt.Errorf("upload: decoding text: %w", err)
		}

		return payload{data: decoded, lossy: true}, nil
	default:
		return payload{}, fmt.Errorf("upload: unknown text mode %q", mode)
	}
}
