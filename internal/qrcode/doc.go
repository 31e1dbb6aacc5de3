// Package qrcode turns a verification payload into a square QR code raster.
//
// The package wraps github.com/skip2/go-qrcode with fixed encoding
// parameters so every voucher carries a code of the same shape:
//
//   - error correction level High, so a scuffed or badly printed voucher
//     still scans;
//   - the standard four-module quiet zone is always kept, so the code never
//     touches neighbouring page elements;
//   - ModulePixels pixels per module, independent of the payload length.
//
// Encode returns the raster as an image.Image. EncodePNG returns an 8-bit
// grayscale PNG suitable for embedding into a PDF page.
//
// Errors are package-level sentinels and can be compared with errors.Is.
package qrcode
