package watermark

import (
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"go.uber.org/zap"
)

const (
	MinFrameInterval = 1
	MaxFrameInterval = 30
)

// Embedder 一种水印嵌入策略，不得修改输入图像
type Embedder interface {
	Name() string
	Embed(img *Image, text string) (*Image, error)
}

// EmbeddingConfig 选择嵌入策略与采样间隔
type EmbeddingConfig struct {
	Visible       bool
	Redundant     bool
	FrameInterval int
}

// ClampInterval 将处理间隔限制在 [1, 30]
func ClampInterval(interval int) int {
	return max(MinFrameInterval, min(MaxFrameInterval, interval))
}

// Result 嵌入结果，Image 与输入尺寸一致
type Result struct {
	Image    *Image
	Modified bool
	Strategy string
}

// Codec 按 EmbeddingConfig 选择四种策略之一，统一执行空文本、容量与兼容模式检查
type Codec struct {
	Plain     *PlainLSB
	Redundant *RedundantLSB
	Centered  *CenteredOverlay
	Tiled     *TiledOverlay

	// Lenient 容量不足时静默返回原图而不是报错
	Lenient bool
}

// NewCodec 使用默认参数创建编解码器
func NewCodec() *Codec {
	return &Codec{
		Plain:     &PlainLSB{},
		Redundant: NewRedundantLSB(),
		Centered:  &CenteredOverlay{},
		Tiled:     &TiledOverlay{},
	}
}

// Select 根据配置返回对应策略
func (c *Codec) Select(cfg EmbeddingConfig) Embedder {
	switch {
	case cfg.Visible && cfg.Redundant:
		return c.Tiled
	case cfg.Visible:
		return c.Centered
	case cfg.Redundant:
		return c.Redundant
	default:
		return c.Plain
	}
}

// Embed 使用所选策略嵌入水印
func (c *Codec) Embed(cfg EmbeddingConfig, img *Image, text string) (Result, error) {
	strategy := c.Select(cfg)
	res := Result{Image: img, Strategy: strategy.Name()}

	if err := img.validate("Embed"); err != nil {
		return res, err
	}
	if text == "" {
		return res, nil
	}

	out, err := strategy.Embed(img, text)
	if err != nil {
		if c.Lenient && IsKind(err, KindCapacity) {
			utils.Logger.Warn("watermark skipped, image too small",
				zap.String("strategy", strategy.Name()),
				zap.Int("width", img.Width),
				zap.Int("height", img.Height),
				zap.Error(err))
			return res, nil
		}
		return res, err
	}

	res.Image = out
	res.Modified = true
	return res, nil
}
