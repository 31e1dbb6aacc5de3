package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

var (
	// ErrEmptyPayload is returned when the payload is empty or only whitespace
	ErrEmptyPayload = errors.New("payload cannot be empty")
	// ErrEncodeFailed is returned when the payload does not fit into a QR symbol
	ErrEncodeFailed = errors.New("failed to encode QR code")
)

const (
	// ModulePixels is the raster size of one QR module
	ModulePixels = 10

	// Level favours decodability over density
	Level = skipqrcode.High
)

// Encode builds the QR raster for payload.
// The returned image is square and includes the quiet zone.
func Encode(payload string) (image.Image, error) {
	q, err := newSymbol(payload)
	if err != nil {
		return nil, err
	}
	return q.Image(-ModulePixels), nil
}

// EncodePNG builds the QR raster for payload and encodes it as an 8-bit
// grayscale PNG.
func EncodePNG(payload string) ([]byte, error) {
	img, err := Encode(payload)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, errors.Join(ErrEncodeFailed, fmt.Errorf("png: %w", err))
	}
	return buf.Bytes(), nil
}

// Modules returns the symbol width in modules, quiet zone included
func Modules(payload string) (int, error) {
	q, err := newSymbol(payload)
	if err != nil {
		return 0, err
	}
	return len(q.Bitmap()), nil
}

func newSymbol(payload string) (*skipqrcode.QRCode, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, ErrEmptyPayload
	}
	q, err := skipqrcode.New(payload, Level)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailed, err)
	}
	q.DisableBorder = false
	return q, nil
}
