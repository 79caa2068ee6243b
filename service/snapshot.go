package service

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"
	"github.com/multiformats/go-multihash"
	"github.com/paulchi-intel/lsb-watermark-embedder/model"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
)

// 快照类别
const (
	KindScreenshot  = "screenshot"
	KindOriginal    = "original"
	KindWatermarked = "watermarked"
	KindComparison  = "comparison"
)

const indexFile = "index.jsonl"

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrCIDMismatch      = errors.New("snapshot content does not match cid")
	ErrInvalidCID       = errors.New("invalid cid")
)

// SnapshotStore 以内容寻址方式保存无损快照
//
// 快照编码为 BMP，CID 为 BMP 字节的 CIDv1(raw, sha2-256)，磁盘上以 zstd 压缩保存。
// 同一内容只存储一次，读取时重新计算 CID 校验内容。
type SnapshotStore struct {
	root string
	enc  *zstd.Encoder
	dec  *zstd.Decoder

	mu      sync.Mutex
	entries []model.SnapshotInfo
}

// NewSnapshotStore 在 root 下创建或打开快照存储，并加载索引
func NewSnapshotStore(root string) (*SnapshotStore, error) {
	if root == "" {
		return nil, errors.New("snapshot root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}

	s := &SnapshotStore{root: root, enc: enc, dec: dec}
	if err := s.loadIndex(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// SnapshotCID 计算内容的 CIDv1(raw, sha2-256)
func SnapshotCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// EncodeBMP 将图像编码为 BMP
func EncodeBMP(img *watermark.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img.ToNRGBA()); err != nil {
		return nil, fmt.Errorf("failed to encode bmp: %w", err)
	}
	return buf.Bytes(), nil
}

// Put 保存图像并记录到索引，返回快照信息
func (s *SnapshotStore) Put(img *watermark.Image, kind string) (*model.SnapshotInfo, error) {
	data, err := EncodeBMP(img)
	if err != nil {
		return nil, err
	}
	id, err := s.putBytes(data)
	if err != nil {
		return nil, err
	}

	info := model.SnapshotInfo{
		CID:       id.String(),
		Kind:      kind,
		Width:     img.Width,
		Height:    img.Height,
		Timestamp: time.Now().UnixNano(),
	}
	if err := s.appendIndex(info); err != nil {
		return nil, err
	}

	utils.Logger.Debug("snapshot stored",
		zap.String("cid", info.CID),
		zap.String("kind", kind),
		zap.Int("bytes", len(data)))
	return &info, nil
}

func (s *SnapshotStore) putBytes(data []byte) (cid.Cid, error) {
	id, err := SnapshotCID(data)
	if err != nil {
		return cid.Undef, err
	}

	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			if _, rerr := s.Get(id); rerr != nil {
				return cid.Undef, rerr
			}
			return id, nil
		}
		return cid.Undef, err
	}

	if _, err := f.Write(s.enc.EncodeAll(data, nil)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	return id, nil
}

// Get 读取快照的 BMP 字节并校验 CID
func (s *SnapshotStore) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	raw, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	data, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	got, err := SnapshotCID(data)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, ErrCIDMismatch
	}
	return data, nil
}

// GetImage 读取快照并解码为图像
func (s *SnapshotStore) GetImage(id cid.Cid) (*watermark.Image, error) {
	data, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	decoded, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode bmp: %w", err)
	}
	return watermark.FromImage(decoded), nil
}

func (s *SnapshotStore) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

// Latest 返回指定类别最近的 n 条记录，按时间从旧到新排列
func (s *SnapshotStore) Latest(kind string, n int) []model.SnapshotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SnapshotInfo
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		if s.entries[i].Kind == kind {
			out = append(out, s.entries[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *SnapshotStore) Close() {
	s.enc.Close()
	s.dec.Close()
}

func (s *SnapshotStore) pathFor(id cid.Cid) string {
	str := id.String()
	if len(str) < 2 {
		return filepath.Join(s.root, str+".bmp.zst")
	}
	// CIDv1 的 base32 前缀相同，使用末尾两位分目录
	return filepath.Join(s.root, str[len(str)-2:], str+".bmp.zst")
}

func (s *SnapshotStore) loadIndex() error {
	f, err := os.Open(filepath.Join(s.root, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var info model.SnapshotInfo
		if err := json.Unmarshal(scanner.Bytes(), &info); err != nil {
			utils.Logger.Warn("skipping corrupt snapshot index entry", zap.Error(err))
			continue
		}
		s.entries = append(s.entries, info)
	}
	return scanner.Err()
}

func (s *SnapshotStore) appendIndex(info model.SnapshotInfo) error {
	line, err := json.Marshal(info)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.root, indexFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	s.entries = append(s.entries, info)
	return nil
}
