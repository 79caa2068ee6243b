package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// FrameSource 帧来源，Read 每次返回一帧新图像
type FrameSource interface {
	Read(ctx context.Context) (*watermark.Image, error)
	Close() error
}

// OpenSource 根据配置打开帧来源："synthetic"、摄像头编号或视频文件/URL
func OpenSource(cfg *config.StreamConfig) (FrameSource, error) {
	if cfg.Source == "" || cfg.Source == "synthetic" {
		return NewSyntheticSource(cfg.Width, cfg.Height), nil
	}
	var device interface{} = cfg.Source
	if id, err := strconv.Atoi(cfg.Source); err == nil {
		device = id
	}
	src, err := OpenVideoSource(device)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// SyntheticSource 生成确定性的移动渐变帧，用于没有采集设备的环境与测试
type SyntheticSource struct {
	width  int
	height int

	mu  sync.Mutex
	seq int
}

// NewSyntheticSource 创建合成帧来源
func NewSyntheticSource(width, height int) *SyntheticSource {
	return &SyntheticSource{width: width, height: height}
}

func (s *SyntheticSource) Read(ctx context.Context) (*watermark.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	img := watermark.NewImage(s.width, s.height)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			i := (y*s.width + x) * watermark.Channels
			img.Pix[i+0] = uint8(x + seq)
			img.Pix[i+1] = uint8(y + seq*2)
			img.Pix[i+2] = uint8((x ^ y) + seq*3)
		}
	}
	return img, nil
}

func (s *SyntheticSource) Close() error {
	return nil
}

// VideoSource 基于 gocv.VideoCapture 的帧来源（摄像头、视频文件或流地址）
type VideoSource struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	mu      sync.Mutex
}

// OpenVideoSource device 可以是摄像头编号或文件路径/URL
func OpenVideoSource(device interface{}) (*VideoSource, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %v: %w", device, err)
	}

	utils.Logger.Info("video source opened", zap.Any("device", device))
	return &VideoSource{
		capture: capture,
		frame:   gocv.NewMat(),
	}, nil
}

func (s *VideoSource) Read(ctx context.Context) (*watermark.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok := s.capture.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, fmt.Errorf("failed to read frame from video source")
	}
	return watermark.FromMat(s.frame)
}

func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame.Close()
	return s.capture.Close()
}
