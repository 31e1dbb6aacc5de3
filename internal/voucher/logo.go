package voucher

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxLogoPixels bounds the embedded raster. The logo box is at most 100pt
// wide, so anything beyond this only inflates every voucher in a batch.
const maxLogoPixels = 600

// LogoAsset is a decoded logo shared by every voucher of a run.
// It is never mutated after construction and is safe for concurrent use.
type LogoAsset struct {
	source string
	img    image.Image

	once    sync.Once
	encoded []byte
	err     error
}

// NewLogoAsset wraps an already decoded image
func NewLogoAsset(img image.Image, source string) *LogoAsset {
	return &LogoAsset{source: source, img: img}
}

// DecodeLogo decodes a PNG, JPEG, GIF, BMP or WebP image
func DecodeLogo(r io.Reader, source string) (*LogoAsset, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &LogoDecodeError{Source: source, Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &LogoDecodeError{Source: source, Err: fmt.Errorf("empty image")}
	}
	return NewLogoAsset(img, source), nil
}

// LoadLogoFile decodes the logo stored at path
func LoadLogoFile(path string) (*LogoAsset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LogoDecodeError{Source: path, Err: err}
	}
	defer f.Close()
	return DecodeLogo(f, path)
}

// Source describes where the logo came from
func (l *LogoAsset) Source() string {
	return l.source
}

// Size returns the natural size of the logo in pixels
func (l *LogoAsset) Size() (int, int) {
	b := l.img.Bounds()
	return b.Dx(), b.Dy()
}

// PNG returns the logo as an 8-bit NRGBA PNG, downscaled if it is larger
// than needed. The encoding happens once per asset.
func (l *LogoAsset) PNG() ([]byte, error) {
	l.once.Do(func() {
		l.encoded, l.err = encodeLogo(l.img)
	})
	return l.encoded, l.err
}

func encodeLogo(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrLogoDraw)
	}
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrLogoDraw)
	}
	if longest := max(w, h); longest > maxLogoPixels {
		w = max(1, w*maxLogoPixels/longest)
		h = max(1, h*maxLogoPixels/longest)
	}

	// 16-bit rasters are not accepted by the PDF writer, so always go
	// through an 8-bit canvas
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLogoDraw, err)
	}
	return buf.Bytes(), nil
}
