package transform

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image/jpeg"
	"io"
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	jpegSOI      = []byte{0xFF, 0xD8}
	jpegEOI      = []byte{0xFF, 0xD9}
)

// minJPEGPadding is the least number of zero bytes appended to a truncated
// JPEG scan.
const minJPEGPadding = 64 * 1024

// maxRecoveredPixels bounds the raw buffer rebuilt for a truncated PNG.
const maxRecoveredPixels = 1 << 28

// completeTruncated returns data extended into a decodable image whose
// missing tail reads as black (zero) pixels. It reports false when data is
// not a truncated JPEG or PNG it knows how to complete.
func completeTruncated(data []byte) ([]byte, bool) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return completePNG(data)
	case bytes.HasPrefix(data, jpegSOI):
		return completeJPEG(data)
	}
	return nil, false
}

// completeJPEG appends zero entropy-coded data and an end-of-image marker.
// Zero bits always decode to the shortest Huffman code of each table, so the
// remaining blocks decode to flat values.
func completeJPEG(data []byte) ([]byte, bool) {
	if bytes.HasSuffix(data, jpegEOI) {
		return nil, false
	}
	n := minJPEGPadding
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
		blocks := ((cfg.Width + 7) / 8) * ((cfg.Height + 7) / 8) * 3
		n = max(n, blocks*64)
	}
	out := make([]byte, len(data)+n, len(data)+n+len(jpegEOI))
	copy(out, data)
	return append(out, jpegEOI...), true
}

type pngChunk struct {
	typ  string
	data []byte
}

// completePNG inflates the image data that is present, zero-fills the
// remaining scanlines and re-encodes the result. Interlaced images are not
// supported.
func completePNG(data []byte) ([]byte, bool) {
	var (
		ihdr  []byte
		extra []pngChunk
		idat  []byte
	)
	rest := data[len(pngSignature):]
	for len(rest) >= 8 {
		n := int(binary.BigEndian.Uint32(rest[:4]))
		typ := string(rest[4:8])
		end := 8 + n
		complete := n >= 0 && end+4 <= len(rest)
		body := rest[8:]
		if complete {
			body = rest[8:end]
		}
		switch typ {
		case "IHDR":
			if len(body) < 13 {
				return nil, false
			}
			ihdr = body[:13]
		case "PLTE", "tRNS":
			if !complete {
				return nil, false
			}
			extra = append(extra, pngChunk{typ, body})
		case "IDAT":
			idat = append(idat, body...)
		case "IEND":
			return nil, false
		}
		if !complete {
			break
		}
		rest = rest[end+4:]
	}
	if ihdr == nil || len(idat) == 0 {
		return nil, false
	}

	width := int(binary.BigEndian.Uint32(ihdr[0:4]))
	height := int(binary.BigEndian.Uint32(ihdr[4:8]))
	depth, colorType, interlace := int(ihdr[8]), ihdr[9], ihdr[12]
	if interlace != 0 || width <= 0 || height <= 0 || width*height > maxRecoveredPixels {
		return nil, false
	}
	var channels int
	switch colorType {
	case 0, 3:
		channels = 1
	case 2:
		channels = 3
	case 4:
		channels = 2
	case 6:
		channels = 4
	default:
		return nil, false
	}
	rowBytes := 1 + (width*channels*depth+7)/8
	raw := make([]byte, height*rowBytes)

	zr, err := zlib.NewReader(bytes.NewReader(idat))
	if err != nil {
		return nil, false
	}
	if _, err := io.ReadFull(zr, raw); err == nil {
		// Every scanline is present: the damage is elsewhere.
		return nil, false
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw); err != nil {
		return nil, false
	}
	if err := zw.Close(); err != nil {
		return nil, false
	}

	var out bytes.Buffer
	out.Write(pngSignature)
	writePNGChunk(&out, "IHDR", ihdr)
	for _, c := range extra {
		writePNGChunk(&out, c.typ, c.data)
	}
	writePNGChunk(&out, "IDAT", compressed.Bytes())
	writePNGChunk(&out, "IEND", nil)
	return out.Bytes(), true
}

func writePNGChunk(w *bytes.Buffer, typ string, data []byte) {
	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:], typ)
	w.Write(header[:])
	w.Write(data)
	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}
