package hal

// RGB565 pixels are stored little-endian, two bytes per pixel.

func rgb565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

func rgb888From565(p uint16) (r, g, b uint8) {
	r = uint8(uint32(p>>11&0x1F) * 255 / 31)
	g = uint8(uint32(p>>5&0x3F) * 255 / 63)
	b = uint8(uint32(p&0x1F) * 255 / 31)
	return r, g, b
}

// fill565 sets every pixel of buf to p.
func fill565(buf []byte, p uint16) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = byte(p)
		buf[i+1] = byte(p >> 8)
	}
}

// expand565 converts the RGB565 pixels of src into opaque RGBA in dst.
func expand565(dst, src []byte) {
	for i, j := 0, 0; i+1 < len(src) && j+3 < len(dst); i, j = i+2, j+4 {
		dst[j], dst[j+1], dst[j+2] = rgb888From565(uint16(src[i]) | uint16(src[i+1])<<8)
		dst[j+3] = 0xFF
	}
}
