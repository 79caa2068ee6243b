package watermark

// EncodeBits 将文本展开为比特序列，每个字符 8 位、高位在前，每个元素取值 0 或 1
//
// 每个字符的码点必须能放进一个字节，否则返回 KindEncoding 错误。
func EncodeBits(text string) ([]byte, error) {
	bits := make([]byte, 0, len(text)*8)
	for i, r := range text {
		if r < 0 || r > 0xFF {
			return nil, newError(KindEncoding, "EncodeBits", "character %q at byte %d does not fit in one byte", r, i)
		}
		bits = appendByte(bits, byte(r))
	}
	return bits, nil
}

// DecodeBits 每 8 位还原一个字符，最多 length 个，比特不足时提前结束；负数 length 返回空串
func DecodeBits(bits []byte, length int) string {
	n := min(max(length, 0), len(bits)/8)
	runes := make([]rune, 0, n)
	for i := 0; i < n; i++ {
		runes = append(runes, rune(packByte(bits[i*8:i*8+8])))
	}
	return string(runes)
}

func appendByte(bits []byte, v byte) []byte {
	for i := 7; i >= 0; i-- {
		bits = append(bits, (v>>uint(i))&1)
	}
	return bits
}

func packByte(bits []byte) byte {
	var v byte
	for _, b := range bits {
		v = v<<1 | (b & 1)
	}
	return v
}

func setLSB(val, bit byte) byte {
	return (val & 0xFE) | (bit & 1)
}
