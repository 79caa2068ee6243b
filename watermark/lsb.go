package watermark

// PlainLSB 按光栅顺序（行、列、通道）把载荷比特写入通道最低位
//
// 容量按 Width*Height 计算（而非槽位总数）。Extract 完全信任调用方给出的长度，
// 不检查终止符；需要自描述长度时开启 Terminator 并使用 ExtractTerminated。
type PlainLSB struct {
	// Terminator 在载荷末尾追加 8 个 0 比特
	Terminator bool
}

func (p *PlainLSB) Name() string {
	return "lsb"
}

// Capacity 返回可嵌入的最大比特数
func (p *PlainLSB) Capacity(img *Image) int {
	return img.Width * img.Height
}

// Embed 嵌入文本，容量不足返回 KindCapacity 错误
func (p *PlainLSB) Embed(img *Image, text string) (*Image, error) {
	if err := img.validate("PlainLSB.Embed"); err != nil {
		return nil, err
	}
	bits, err := EncodeBits(text)
	if err != nil {
		return nil, err
	}
	if p.Terminator {
		bits = appendByte(bits, 0)
	}
	if len(bits) > p.Capacity(img) {
		return nil, newError(KindCapacity, "PlainLSB.Embed",
			"payload needs %d bits, image %dx%d holds %d", len(bits), img.Width, img.Height, p.Capacity(img))
	}

	out := img.Clone()
	for i, bit := range bits {
		out.Pix[i] = setLSB(out.Pix[i], bit)
	}
	return out, nil
}

// Extract 读取 length 个字符
func (p *PlainLSB) Extract(img *Image, length int) (string, error) {
	if err := img.validate("PlainLSB.Extract"); err != nil {
		return "", err
	}
	if length < 0 {
		return "", newError(KindTruncated, "PlainLSB.Extract", "negative length %d", length)
	}
	if length > img.Slots()/8 {
		return "", newError(KindTruncated, "PlainLSB.Extract",
			"length %d exceeds %d characters held by image", length, img.Slots()/8)
	}
	need := length * 8

	bits := make([]byte, need)
	for i := range bits {
		bits[i] = img.Pix[i] & 1
	}
	return DecodeBits(bits, length), nil
}

// ExtractTerminated 读取到零字节为止，适用于开启 Terminator 的嵌入
func (p *PlainLSB) ExtractTerminated(img *Image) (string, error) {
	if err := img.validate("PlainLSB.ExtractTerminated"); err != nil {
		return "", err
	}

	limit := p.Capacity(img) / 8
	runes := make([]rune, 0, 16)
	for n := 0; n < limit; n++ {
		v := packByte(img.Pix[n*8 : n*8+8])
		if v == 0 {
			return string(runes), nil
		}
		runes = append(runes, rune(v))
	}
	return "", newError(KindTruncated, "PlainLSB.ExtractTerminated", "no terminator within %d bytes", limit)
}
