// internal/codec/codec.go
package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultFormat  = "webp"
	DefaultQuality = 75
)

// Transform decodes data, discards all embedded metadata, applies quality and
// an optional proportional resize, and re-encodes to the requested format.
// Decoding to raw pixels is what drops EXIF/ICC payloads, so the strip happens
// before the resize and the re-encode never sees them. The input slice is not
// modified.
func Transform(data []byte, format string, quality, resizeWidth int) ([]byte, string, error) {
	const op = "codec.Transform"

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%s: decode: %w", op, err)
	}

	q := clampQuality(quality)

	if resizeWidth > 0 {
		// Height 0 keeps the aspect ratio, rounded to the nearest pixel.
		img = imaging.Resize(img, resizeWidth, 0, imaging.Lanczos)
	}

	f := NormalizeFormat(format)
	var buf bytes.Buffer
	switch f {
	case "webp":
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(q))
		if err != nil {
			return nil, "", fmt.Errorf("%s: webp options: %w", op, err)
		}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, "", fmt.Errorf("%s: encode webp: %w", op, err)
		}
	case "jpeg":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, "", fmt.Errorf("%s: encode jpeg: %w", op, err)
		}
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", fmt.Errorf("%s: encode png: %w", op, err)
		}
	case "gif":
		if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
			return nil, "", fmt.Errorf("%s: encode gif: %w", op, err)
		}
	case "tiff":
		if err := imaging.Encode(&buf, img, imaging.TIFF); err != nil {
			return nil, "", fmt.Errorf("%s: encode tiff: %w", op, err)
		}
	case "bmp":
		if err := imaging.Encode(&buf, img, imaging.BMP); err != nil {
			return nil, "", fmt.Errorf("%s: encode bmp: %w", op, err)
		}
	default:
		return nil, "", fmt.Errorf("%s: unsupported output format %q", op, format)
	}

	return buf.Bytes(), MimeType(f), nil
}

// NormalizeFormat maps user input ("", "jpg", ".WEBP", ...) to a canonical
// lowercase format name. Empty input means the default output format.
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	switch f {
	case "":
		return DefaultFormat
	case "jpg":
		return "jpeg"
	default:
		return f
	}
}

// Extension returns the file extension (without dot) for a format.
func Extension(format string) string {
	f := NormalizeFormat(format)
	if f == "jpeg" {
		return "jpg"
	}
	return f
}

func MimeType(format string) string {
	return "image/" + NormalizeFormat(format)
}

func clampQuality(q int) int {
	switch {
	case q == 0:
		return DefaultQuality
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}
