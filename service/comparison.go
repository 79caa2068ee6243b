package service

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/paulchi-intel/lsb-watermark-embedder/imgdiff"
	"github.com/paulchi-intel/lsb-watermark-embedder/model"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"go.uber.org/zap"
)

var ErrNotEnoughSnapshots = errors.New("not enough screenshots to compare")

// ComparisonService 生成嵌入前后的对比图并保存到快照存储
type ComparisonService struct {
	store *SnapshotStore
	codec *watermark.Codec
}

// NewComparisonService 创建对比服务
func NewComparisonService(store *SnapshotStore, codec *watermark.Codec) *ComparisonService {
	return &ComparisonService{store: store, codec: codec}
}

// Comparison 对比结果与三联图
type Comparison struct {
	Result    model.ComparisonResult
	Composite *watermark.Image
}

// CaptureAndCompare 对一帧嵌入水印，保存原图、水印图与对比图
//
// 可见模式优先使用居中文字；文本为空时使用 FallbackText。
func (s *ComparisonService) CaptureAndCompare(frame *watermark.Image, settings Settings) (*Comparison, error) {
	text := settings.Text
	if text == "" {
		utils.Logger.Warn("no watermark text configured, using fallback", zap.String("text", FallbackText))
		text = FallbackText
	}
	cfg := settings.EmbeddingConfig()
	if cfg.Visible {
		cfg.Redundant = false
	}

	res, err := s.codec.Embed(cfg, frame, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed watermark: %w", err)
	}

	diff, err := imgdiff.Compare(frame, res.Image)
	if err != nil {
		return nil, err
	}
	changed := diff.ChangedSlots()
	if changed == 0 {
		utils.Logger.Warn("watermarked frame is identical to the original",
			zap.String("strategy", res.Strategy))
	}

	composite, err := diff.Compose(imgdiff.DefaultLabels)
	if err != nil {
		return nil, err
	}

	original, err := s.store.Put(frame, KindOriginal)
	if err != nil {
		return nil, err
	}
	marked, err := s.store.Put(res.Image, KindWatermarked)
	if err != nil {
		return nil, err
	}
	comparison, err := s.store.Put(composite, KindComparison)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("comparison created",
		zap.String("strategy", res.Strategy),
		zap.Int("changed_slots", changed),
		zap.String("comparison", comparison.CID))

	return &Comparison{
		Result: model.ComparisonResult{
			Original:     original.CID,
			Watermarked:  marked.CID,
			Comparison:   comparison.CID,
			Strategy:     res.Strategy,
			Modified:     res.Modified,
			ChangedSlots: changed,
		},
		Composite: composite,
	}, nil
}

// CompareLatest 对比最近两张截图
func (s *ComparisonService) CompareLatest() (*Comparison, error) {
	latest := s.store.Latest(KindScreenshot, 2)
	if len(latest) < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrNotEnoughSnapshots, len(latest))
	}

	images := make([]*watermark.Image, 2)
	for i, info := range latest {
		id, err := cid.Decode(info.CID)
		if err != nil {
			return nil, err
		}
		if images[i], err = s.store.GetImage(id); err != nil {
			return nil, err
		}
	}

	diff, err := imgdiff.Compare(images[0], images[1])
	if err != nil {
		return nil, err
	}
	composite, err := diff.Compose([3]string{
		"Screenshot 1: " + shortCID(latest[0].CID),
		"Screenshot 2: " + shortCID(latest[1].CID),
		imgdiff.DefaultLabels[2],
	})
	if err != nil {
		return nil, err
	}

	comparison, err := s.store.Put(composite, KindComparison)
	if err != nil {
		return nil, err
	}

	return &Comparison{
		Result: model.ComparisonResult{
			Original:     latest[0].CID,
			Watermarked:  latest[1].CID,
			Comparison:   comparison.CID,
			Resized:      diff.Resized,
			ChangedSlots: diff.ChangedSlots(),
		},
		Composite: composite,
	}, nil
}

func shortCID(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[len(s)-12:]
}
