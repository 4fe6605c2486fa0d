// Package imaging normalises user-submitted photos before they are sent to
// the language model.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

const (
	// MaxDimension bounds the longer side of a processed image.
	MaxDimension = 1024
	// MaxInputBytes rejects oversized uploads before decoding.
	MaxInputBytes = 10 << 20
	jpegQuality   = 85
)

var (
	ErrEmptyImage    = errors.New("empty image payload")
	ErrImageTooLarge = errors.New("image payload too large")
	ErrDecode        = errors.New("cannot decode image")
)

// Processed is a re-encoded image ready for inline transmission.
type Processed struct {
	Base64   string
	MimeType string
	Width    int
	Height   int
}

// Preprocess decodes a base64 payload (optionally a data URL), downsizes it
// so neither side exceeds MaxDimension and re-encodes it as JPEG.
func Preprocess(payload string) (Processed, error) {
	raw, err := decodePayload(payload)
	if err != nil {
		return Processed{}, err
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Processed{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	dst := resize(src, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Processed{}, fmt.Errorf("encode %s as jpeg: %w", format, err)
	}

	b := dst.Bounds()
	return Processed{
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType: "image/jpeg",
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

func decodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, ErrEmptyImage
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxInputBytes {
		return nil, ErrImageTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return raw, nil
}

func resize(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = limit
		nh = max(1, h*limit/w)
	} else {
		nh = limit
		nw = max(1, w*limit/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
