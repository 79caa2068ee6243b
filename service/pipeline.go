package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulchi-intel/lsb-watermark-embedder/framegate"
	"github.com/paulchi-intel/lsb-watermark-embedder/model"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"go.uber.org/zap"
)

// Settings 单个流的水印设置
type Settings struct {
	Text          string
	Visible       bool
	Redundant     bool
	FrameInterval int
	Processing    bool
}

// EmbeddingConfig 转换为编解码器配置
func (s Settings) EmbeddingConfig() watermark.EmbeddingConfig {
	return watermark.EmbeddingConfig{
		Visible:       s.Visible,
		Redundant:     s.Redundant,
		FrameInterval: s.FrameInterval,
	}
}

// Apply 应用 config 指令中非空的字段，返回新的设置
func (s Settings) Apply(cmd *model.StreamSettings) Settings {
	if cmd == nil {
		return s
	}
	if cmd.WatermarkText != nil {
		s.Text = *cmd.WatermarkText
	}
	if cmd.WatermarkVisible != nil {
		s.Visible = *cmd.WatermarkVisible
	}
	if cmd.WatermarkRedundancy != nil {
		s.Redundant = *cmd.WatermarkRedundancy
	}
	if cmd.FrameInterval != nil {
		s.FrameInterval = watermark.ClampInterval(*cmd.FrameInterval)
	}
	if cmd.Processing != nil {
		s.Processing = *cmd.Processing
	}
	return s
}

// FrameSink 接收编码后的帧
type FrameSink interface {
	Send(ctx context.Context, frame *model.FrameMessage) error
}

// Stats 流统计
type Stats struct {
	Frames      uint64  `json:"frames"`
	Watermarked uint64  `json:"watermarked"`
	Failed      uint64  `json:"failed"`
	FPS         float64 `json:"fps"`
}

// PipelineOptions 流水线参数
type PipelineOptions struct {
	MaxFPS      int
	JPEGQuality int
	Recorder    *Recorder
}

// Pipeline 单个流的采集、嵌入、编码循环
//
// 设置更新在帧边界生效：每帧开始时读取一次设置快照，
// 帧按采集顺序发送，不会并发处理。
type Pipeline struct {
	source   FrameSource
	codec    *watermark.Codec
	gate     *framegate.Gate
	recorder *Recorder
	interval time.Duration
	quality  int

	mu       sync.Mutex
	settings Settings
	last     *watermark.Image

	seq         atomic.Uint64
	watermarked atomic.Uint64
	failed      atomic.Uint64
	started     time.Time
}

// NewPipeline 创建流水线
func NewPipeline(source FrameSource, codec *watermark.Codec, settings Settings, opts PipelineOptions) *Pipeline {
	if settings.FrameInterval == 0 {
		settings.FrameInterval = framegate.DefaultInterval
	}
	settings.FrameInterval = watermark.ClampInterval(settings.FrameInterval)

	p := &Pipeline{
		source:   source,
		codec:    codec,
		gate:     framegate.New(settings.FrameInterval),
		recorder: opts.Recorder,
		quality:  opts.JPEGQuality,
		settings: settings,
	}
	if opts.MaxFPS > 0 {
		p.interval = time.Second / time.Duration(opts.MaxFPS)
	}
	if p.quality <= 0 || p.quality > 100 {
		p.quality = 85
	}
	return p
}

// Settings 返回当前设置
func (p *Pipeline) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Update 应用指令并返回新设置。间隔变化或处理开关切换时重置采样计数
func (p *Pipeline) Update(cmd *model.StreamSettings) Settings {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.settings
	next := prev.Apply(cmd)
	if next.FrameInterval != prev.FrameInterval {
		p.gate.SetInterval(next.FrameInterval)
	}
	if next.Processing != prev.Processing {
		p.gate.Reset()
	}
	p.settings = next

	utils.Logger.Info("stream settings updated",
		zap.String("text", next.Text),
		zap.Bool("visible", next.Visible),
		zap.Bool("redundant", next.Redundant),
		zap.Int("frame_interval", next.FrameInterval),
		zap.Bool("processing", next.Processing))
	return next
}

// LastFrame 返回最近一次采集的原始帧
func (p *Pipeline) LastFrame() (*watermark.Image, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil, false
	}
	return p.last, true
}

// Capture 从流水线自身的来源读取一帧并记为最近一帧，不推进采样计数也不输出
func (p *Pipeline) Capture(ctx context.Context) (*watermark.Image, error) {
	frame, err := p.source.Read(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.last = frame
	p.mu.Unlock()
	return frame, nil
}

// Recorder 返回流水线的录像器，可能为 nil
func (p *Pipeline) Recorder() *Recorder {
	return p.recorder
}

// Stats 返回统计信息
func (p *Pipeline) Stats() Stats {
	frames := p.seq.Load()
	s := Stats{
		Frames:      frames,
		Watermarked: p.watermarked.Load(),
		Failed:      p.failed.Load(),
	}
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if elapsed := time.Since(started).Seconds(); !started.IsZero() && elapsed > 0 {
		s.FPS = float64(frames) / elapsed
	}
	return s
}

// Run 循环处理帧直到 ctx 取消或来源/输出出错
func (p *Pipeline) Run(ctx context.Context, sink FrameSink) error {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()

	var ticker *time.Ticker
	if p.interval > 0 {
		ticker = time.NewTicker(p.interval)
		defer ticker.Stop()
	}

	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.Step(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				utils.Logger.Error("failed to process frame", zap.Error(err))
			}
			return err
		}
		if err := sink.Send(ctx, msg); err != nil {
			return err
		}
	}
}

// Step 采集并处理一帧
//
// 处理开启且当前帧为采样帧时嵌入水印；嵌入失败只记录日志，帧以原样输出。
func (p *Pipeline) Step(ctx context.Context) (*model.FrameMessage, error) {
	frame, err := p.source.Read(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	settings := p.settings
	target := settings.Processing && p.gate.Tick()
	p.last = frame
	p.mu.Unlock()

	out := frame
	var strategy string
	if target {
		res, err := p.codec.Embed(settings.EmbeddingConfig(), frame, settings.Text)
		if err != nil {
			p.failed.Add(1)
			utils.Logger.Warn("watermark embedding failed, sending frame unmodified",
				zap.String("strategy", res.Strategy),
				zap.Error(err))
		} else {
			out = res.Image
			if res.Modified {
				strategy = res.Strategy
				p.watermarked.Add(1)
			}
		}
	}

	if p.recorder != nil {
		if err := p.recorder.Write(out); err != nil {
			utils.Logger.Warn("failed to write recording frame", zap.Error(err))
		}
	}

	jpeg, err := EncodeJPEG(out, p.quality)
	if err != nil {
		return nil, err
	}

	return &model.FrameMessage{
		Seq:       p.seq.Add(1),
		TraceID:   uuid.NewString(),
		Width:     out.Width,
		Height:    out.Height,
		Processed: strategy != "",
		Strategy:  strategy,
		JPEG:      jpeg,
	}, nil
}
