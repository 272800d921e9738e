package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
)

const (
	thumbWidth  = 640
	thumbHeight = 360
	webpQuality = 75
)

// EncodeThumbnail downscales a captured PNG to thumbnail size and
// re-encodes it as WebP. Returns the payload and its file extension.
func EncodeThumbnail(pngData []byte) ([]byte, string, error) {
	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, "", fmt.Errorf("invalid capture data: %w", err)
	}
	return encodeScaled(src)
}

// EncodeFetchedImage re-encodes a downloaded preview image (png, jpeg
// or gif) into the thumbnail format.
func EncodeFetchedImage(data []byte) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unsupported preview image: %w", err)
	}
	return encodeScaled(src)
}

func encodeScaled(src image.Image) ([]byte, string, error) {
	dst := image.NewRGBA(image.Rect(0, 0, thumbWidth, thumbHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, dst, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, "", fmt.Errorf("webp encode failed: %w", err)
	}
	return buf.Bytes(), "webp", nil
}
