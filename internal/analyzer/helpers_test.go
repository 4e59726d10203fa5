package analyzer

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// withOrientation inserts an EXIF APP1 segment carrying the given
// orientation tag right after the SOI marker of a JPEG.
func withOrientation(jpg []byte, orientation uint16) []byte {
	var exif bytes.Buffer
	exif.WriteString("Exif\x00\x00")
	exif.WriteString("MM")
	binary.Write(&exif, binary.BigEndian, uint16(0x002a))
	binary.Write(&exif, binary.BigEndian, uint32(8)) // offset of IFD0
	binary.Write(&exif, binary.BigEndian, uint16(1)) // one entry
	binary.Write(&exif, binary.BigEndian, uint16(0x0112))
	binary.Write(&exif, binary.BigEndian, uint16(3)) // SHORT
	binary.Write(&exif, binary.BigEndian, uint32(1))
	binary.Write(&exif, binary.BigEndian, orientation)
	binary.Write(&exif, binary.BigEndian, uint16(0))
	binary.Write(&exif, binary.BigEndian, uint32(0)) // no next IFD

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xff, 0xe1})
	binary.Write(&out, binary.BigEndian, uint16(exif.Len()+2))
	out.Write(exif.Bytes())
	out.Write(jpg[2:])
	return out.Bytes()
}

// webpHeader returns a lossless WEBP stream that carries only the
// dimensions. It is enough for format detection but not for decoding.
func webpHeader(width, height int) []byte {
	bits := uint32(width-1) | uint32(height-1)<<14

	chunk := []byte{0x2f}
	chunk = binary.LittleEndian.AppendUint32(chunk, bits)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(chunk)+1))
	buf.WriteString("WEBP")
	buf.WriteString("VP8L")
	binary.Write(&buf, binary.LittleEndian, uint32(len(chunk)))
	buf.Write(chunk)
	buf.WriteByte(0) // pad to even length
	return buf.Bytes()
}

// gradientImage is a smooth photo-like image with a green region.
func gradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / width),
				G: uint8(100 + y*100/height),
				B: 50,
				A: 255,
			})
		}
	}
	return img
}

func identityConfig() Config {
	cfg := DefaultConfig()
	cfg.Enhancement = Enhancement{Contrast: 1, Saturation: 1, Sharpness: 1}
	return cfg
}

// pngHeader returns the PNG signature and an IHDR chunk declaring an 8-bit
// grayscale canvas of the given size, with no pixel data behind it.
func pngHeader(width, height int) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	binary.Write(&ihdr, binary.BigEndian, uint32(width))
	binary.Write(&ihdr, binary.BigEndian, uint32(height))
	ihdr.Write([]byte{8, 0, 0, 0, 0}) // depth, gray, deflate, filter, no interlace

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(ihdr.Len()-4))
	buf.Write(ihdr.Bytes())
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return buf.Bytes()
}
