package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var ErrNotRecording = errors.New("recorder is not running")

// Recorder 将输出帧写入视频文件，文件在收到第一帧时按帧尺寸创建
type Recorder struct {
	dir   string
	codec string
	fps   float64

	mu        sync.Mutex
	recording bool
	path      string
	writer    *gocv.VideoWriter
	frames    int
}

// NewRecorder 创建录像器
func NewRecorder(cfg *config.StorageConfig) *Recorder {
	return &Recorder{
		dir:   cfg.RecordingDir,
		codec: cfg.RecordingCodec,
		fps:   cfg.RecordingFPS,
	}
}

// Recording 是否正在录像
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start 开始录像，返回目标文件路径；已在录像时返回当前路径
func (r *Recorder) Start() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return r.path, nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}

	r.path = filepath.Join(r.dir, utils.TimestampName("recording", ".mp4"))
	r.recording = true
	r.frames = 0

	utils.Logger.Info("recording started", zap.String("path", r.path))
	return r.path, nil
}

// Write 写入一帧，未在录像时忽略
func (r *Recorder) Write(img *watermark.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil
	}
	if r.writer == nil {
		writer, err := gocv.VideoWriterFile(r.path, r.codec, r.fps, img.Width, img.Height, true)
		if err != nil {
			return fmt.Errorf("failed to open video writer: %w", err)
		}
		r.writer = writer
	}

	mat, err := img.ToMat()
	if err != nil {
		return err
	}
	defer mat.Close()

	if err := r.writer.Write(mat); err != nil {
		return err
	}
	r.frames++
	return nil
}

// Stop 停止录像并返回文件路径
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return "", ErrNotRecording
	}
	r.recording = false

	var err error
	if r.writer != nil {
		err = r.writer.Close()
		r.writer = nil
	}

	utils.Logger.Info("recording stopped",
		zap.String("path", r.path),
		zap.Int("frames", r.frames))
	return r.path, err
}
