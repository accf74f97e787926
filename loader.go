package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Images above this many pixels are rejected before allocating a buffer
const maxDecodePixels = 1 << 28

// PixelFormat describes the layout of DecodedImage.Pix
type PixelFormat int

const (
	// PixelFormatRGBA8 is 8-bit premultiplied RGBA, 4 bytes per pixel
	PixelFormatRGBA8 PixelFormat = iota
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA8:
		return "RGBA8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// DecodedImage is a raw pixel buffer owned by the cache. It is never
// mutated after a worker hands it over.
type DecodedImage struct {
	Width  int
	Height int
	Format PixelFormat
	Stride int
	Pix    []byte
}

// ByteSize is the amount charged against the memory budget
func (d *DecodedImage) ByteSize() int64 {
	if d == nil {
		return 0
	}
	return int64(len(d.Pix))
}

// RGBA exposes the buffer as an image.RGBA without copying
func (d *DecodedImage) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    d.Pix,
		Stride: d.Stride,
		Rect:   image.Rect(0, 0, d.Width, d.Height),
	}
}

// loadDecodedImage is the decode backend run on worker goroutines
func loadDecodedImage(src ImagePath) (*DecodedImage, error) {
	data, err := readImageBytes(src)
	if err != nil {
		return nil, err
	}
	return decodeImage(data, src.Path)
}

// readImageBytes reads the raw bytes of a file or archive entry. Every
// failure is an IoError.
func readImageBytes(src ImagePath) ([]byte, error) {
	var data []byte
	var err error

	if src.ArchivePath == "" {
		data, err = os.ReadFile(src.Path)
	} else {
		ext := strings.ToLower(filepath.Ext(src.ArchivePath))
		switch ext {
		case ".zip":
			data, err = readFromZip(src.ArchivePath, src.EntryPath)
		case ".rar":
			data, err = readFromRar(src.ArchivePath, src.EntryPath)
		case ".7z":
			data, err = readFrom7z(src.ArchivePath, src.EntryPath)
		default:
			err = fmt.Errorf("unsupported archive format: %s", ext)
		}
	}

	if err != nil {
		return nil, &IoError{Path: src.Path, Err: err}
	}
	return data, nil
}

// decodeImage turns encoded bytes into an RGBA8 buffer. Every failure is a
// DecodeError.
func decodeImage(data []byte, path string) (*DecodedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: err.Error()}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Path: path, Reason: "empty image"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxDecodePixels {
		return nil, &DecodeError{Path: path, Reason: fmt.Sprintf("image too large (%dx%d)", cfg.Width, cfg.Height)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: err.Error()}
	}

	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	return &DecodedImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: PixelFormatRGBA8,
		Stride: rgba.Stride,
		Pix:    rgba.Pix,
	}, nil
}

func readFromZip(archivePath, entryPath string) ([]byte, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == entryPath {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s: %w", entryPath, fs.ErrNotExist)
}

func readFromRar(archivePath, entryPath string) ([]byte, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}

	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if header.Name == entryPath {
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("entry %s: %w", entryPath, fs.ErrNotExist)
}

func readFrom7z(archivePath, entryPath string) ([]byte, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == entryPath {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s: %w", entryPath, fs.ErrNotExist)
}
