package watermark

import (
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"go.uber.org/zap"
)

const (
	// DefaultRedundancy 每个载荷比特的默认副本数
	DefaultRedundancy uint8 = 10

	seedBits   = 32
	factorBits = 8
	// HeaderSlots 头部占用的光栅槽位数：[0,32) 种子（大端），[32,40) 冗余度
	HeaderSlots = seedBits + factorBits
)

// Header 冗余方案头部，解码端据此重建置换
type Header struct {
	Seed   uint32
	Factor uint8
}

// RedundantLSB 每个比特按伪随机置换写入 Factor 个不同槽位，提取时多数表决
//
// 头部固定写在前 40 个光栅槽位，不参与置换；载荷槽位为 40 + perm[k]，
// perm 由 NewPlanner(Seed, Slots-40) 生成。载荷以 NUL 字符结尾。
type RedundantLSB struct {
	Seed   uint32
	Factor uint8
}

// NewRedundantLSB 使用默认种子与冗余度
func NewRedundantLSB() *RedundantLSB {
	return &RedundantLSB{Seed: DefaultSeed, Factor: DefaultRedundancy}
}

func (r *RedundantLSB) Name() string {
	return "lsb-redundant"
}

// Embed 嵌入文本，容量不足时原图不变并返回 KindCapacity 错误
func (r *RedundantLSB) Embed(img *Image, text string) (*Image, error) {
	if err := img.validate("RedundantLSB.Embed"); err != nil {
		return nil, err
	}
	if r.Factor == 0 {
		return nil, newError(KindEncoding, "RedundantLSB.Embed", "redundancy factor must be positive")
	}
	bits, err := EncodeBits(text + "\x00")
	if err != nil {
		return nil, err
	}

	factor := int(r.Factor)
	need := len(bits)*factor + HeaderSlots
	if img.Slots() < need {
		utils.Logger.Warn("image too small for redundant watermark",
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
			zap.Int("slots", img.Slots()),
			zap.Int("required", need))
		return nil, newError(KindCapacity, "RedundantLSB.Embed",
			"payload needs %d slots, image %dx%d holds %d", need, img.Width, img.Height, img.Slots())
	}

	out := img.Clone()
	writeHeader(out, Header{Seed: r.Seed, Factor: r.Factor})

	planner := NewPlanner(r.Seed, img.Slots()-HeaderSlots)
	for _, bit := range bits {
		for c := 0; c < factor; c++ {
			pos, _ := planner.Next()
			slot := HeaderSlots + pos
			out.Pix[slot] = setLSB(out.Pix[slot], bit)
		}
	}

	utils.Logger.Debug("redundant watermark embedded",
		zap.Int("bits", len(bits)),
		zap.Int("redundancy", factor),
		zap.Uint32("seed", r.Seed))
	return out, nil
}

// Extract 读取头部重建置换，多数表决还原每个比特，直到遇到 NUL
func (r *RedundantLSB) Extract(img *Image) (string, error) {
	if err := img.validate("RedundantLSB.Extract"); err != nil {
		return "", err
	}
	if img.Slots() < HeaderSlots {
		return "", newError(KindTruncated, "RedundantLSB.Extract", "image holds %d slots, header needs %d", img.Slots(), HeaderSlots)
	}

	h := ReadHeader(img)
	if h.Factor == 0 {
		return "", newError(KindTruncated, "RedundantLSB.Extract", "header has zero redundancy factor")
	}

	factor := int(h.Factor)
	maxBytes := (img.Slots() - HeaderSlots) / (factor * 8)
	planner := NewPlanner(h.Seed, img.Slots()-HeaderSlots)

	runes := make([]rune, 0, 16)
	byteBits := make([]byte, 8)
	for n := 0; n < maxBytes; n++ {
		for b := range byteBits {
			ones := 0
			for c := 0; c < factor; c++ {
				pos, _ := planner.Next()
				ones += int(img.Pix[HeaderSlots+pos] & 1)
			}
			if ones*2 > factor {
				byteBits[b] = 1
			} else {
				byteBits[b] = 0
			}
		}
		v := packByte(byteBits)
		if v == 0 {
			return string(runes), nil
		}
		runes = append(runes, rune(v))
	}
	return "", newError(KindTruncated, "RedundantLSB.Extract",
		"no terminator within %d bytes (seed %d, redundancy %d)", maxBytes, h.Seed, h.Factor)
}

// ReadHeader 读取前 40 个槽位中的头部
func ReadHeader(img *Image) Header {
	var h Header
	for i := 0; i < seedBits; i++ {
		h.Seed = h.Seed<<1 | uint32(img.Pix[i]&1)
	}
	for i := 0; i < factorBits; i++ {
		h.Factor = h.Factor<<1 | img.Pix[seedBits+i]&1
	}
	return h
}

func writeHeader(img *Image, h Header) {
	for i := 0; i < seedBits; i++ {
		bit := byte(h.Seed>>uint(seedBits-1-i)) & 1
		img.Pix[i] = setLSB(img.Pix[i], bit)
	}
	for i := 0; i < factorBits; i++ {
		bit := (h.Factor >> uint(factorBits-1-i)) & 1
		img.Pix[seedBits+i] = setLSB(img.Pix[seedBits+i], bit)
	}
}
