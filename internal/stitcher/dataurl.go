package stitcher

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"strings"

	"github.com/nfnt/resize"
)

const pngPrefix = "data:image/png;base64,"

// EncodeDataURL encodes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL returns the payload and media type of a data URL. Payloads
// without ;base64 are percent-decoded.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("data URL has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data URL: %w", err)
		}
		return []byte(text), mediaType, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL: %w", err)
	}
	return data, mediaType, nil
}

// DecodeImage decodes an image data URL.
func DecodeImage(dataURL string) (image.Image, error) {
	data, _, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Thumbnail scales a screenshot to fit maxWidth x maxHeight, keeping its
// aspect ratio, and returns it as a PNG data URL.
func Thumbnail(dataURL string, maxWidth, maxHeight int) (string, error) {
	img, err := DecodeImage(dataURL)
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return "", ErrEmptyPage
	}

	aspect := float64(b.Dx()) / float64(b.Dy())
	w, h := float64(maxWidth), float64(maxHeight)
	if aspect > w/h {
		h = w / aspect
	} else {
		w = h * aspect
	}
	thumb := resize.Resize(uint(max(w, 1)), uint(max(h, 1)), img, resize.Bilinear)
	return EncodeDataURL(thumb)
}
