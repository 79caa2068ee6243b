package service

import (
	"os"

	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
)

// FallbackText 无法获取主机名时使用的水印文本
const FallbackText = "LSB Watermark"

// NewCodec 根据配置创建编解码器
func NewCodec(cfg *config.WatermarkConfig) *watermark.Codec {
	codec := watermark.NewCodec()
	codec.Plain.Terminator = cfg.Terminator
	codec.Redundant.Seed = cfg.Seed
	if cfg.Redundancy > 0 {
		codec.Redundant.Factor = cfg.Redundancy
	}
	codec.Lenient = cfg.Lenient
	return codec
}

// DefaultText 返回配置的水印文本，未配置时使用主机名
func DefaultText(cfg *config.WatermarkConfig) string {
	if cfg.Text != "" {
		return cfg.Text
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return FallbackText
}
