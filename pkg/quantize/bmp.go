package quantize

import "encoding/binary"

// BMP layout for 16bpp bitfields rasters: file header, BITMAPINFOHEADER with
// BI_BITFIELDS compression, three channel masks, then bottom-up pixel rows
// padded to 4 bytes.
const (
	fileHeaderSize = 14
	infoHeaderSize = 40
	maskSize       = 12
	pixelOffset    = fileHeaderSize + infoHeaderSize + maskSize

	biBitfields = 3

	maskRed   = 0xF800
	maskGreen = 0x07E0
	maskBlue  = 0x001F
)

// encodeBMP565 packs pre-quantized RGB565 pixels (row-major, top-down) into a
// complete BMP file.
func encodeBMP565(w, h int, pix []uint16) []byte {
	stride := (w*2 + 3) &^ 3
	buf := make([]byte, pixelOffset+stride*h)

	buf[0] = 'B'
	buf[1] = 'M'
	le := binary.LittleEndian
	le.PutUint32(buf[2:], uint32(len(buf)))
	le.PutUint32(buf[10:], pixelOffset)

	le.PutUint32(buf[14:], infoHeaderSize)
	le.PutUint32(buf[18:], uint32(w))
	le.PutUint32(buf[22:], uint32(h)) // positive height: bottom-up rows
	le.PutUint16(buf[26:], 1)         // planes
	le.PutUint16(buf[28:], 16)        // bits per pixel
	le.PutUint32(buf[30:], biBitfields)
	le.PutUint32(buf[34:], uint32(stride*h))
	le.PutUint32(buf[38:], 2835) // 72 DPI
	le.PutUint32(buf[42:], 2835)

	le.PutUint32(buf[54:], maskRed)
	le.PutUint32(buf[58:], maskGreen)
	le.PutUint32(buf[62:], maskBlue)

	for y := 0; y < h; y++ {
		row := buf[pixelOffset+(h-1-y)*stride:]
		for x := 0; x < w; x++ {
			le.PutUint16(row[x*2:], pix[y*w+x])
		}
	}
	return buf
}
