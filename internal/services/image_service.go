package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/homestack/backend/internal/models"
)

var (
	ErrInvalidImage = errors.New("invalid image file")
)

// maxImageDimension is the largest width or height stored on disk; anything
// bigger is downscaled before saving.
const maxImageDimension = 1024

// jpegQuality is the re-encode quality for processed uploads.
const jpegQuality = 85

// ImageService stores item photos under uploadDir and hands back the public
// /uploads/ URL the item record keeps.
type ImageService struct {
	uploadDir string
}

func NewImageService(uploadDir string) *ImageService {
	// Create upload directory if it doesn't exist
	os.MkdirAll(uploadDir, 0755)

	return &ImageService{
		uploadDir: uploadDir,
	}
}

// Save reads the uploaded file, verifies it is an image by sniffing bytes
// (client headers are not trusted), downscales JPEG/PNG content above
// maxImageDimension, and writes it under a fresh uuid filename.
func (s *ImageService) Save(file io.Reader) (*models.ImageUploadResponse, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	detected := http.DetectContentType(data)
	ext := ""
	switch detected {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	default:
		return nil, ErrInvalidImage
	}

	// JPEG and PNG get decoded, bounded and re-encoded as JPEG. GIF and
	// WebP are stored untouched (re-encoding would drop animation).
	if detected == "image/jpeg" || detected == "image/png" {
		processed, err := reencode(data)
		if err != nil {
			return nil, err
		}
		data = processed
		ext = ".jpg"
	}

	imageID := uuid.New().String()
	filename := imageID + ext
	filePath := filepath.Join(s.uploadDir, filename)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &models.ImageUploadResponse{
		ID:       imageID,
		URL:      "/uploads/" + filename,
		Filename: filename,
	}, nil
}

func reencode(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}

	img = downscale(img, maxImageDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale resizes so neither dimension exceeds maxDim, preserving aspect
// ratio. Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = h * maxDim / w
	} else {
		newH = maxDim
		newW = w * maxDim / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
