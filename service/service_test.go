package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/model"
)

func mustDecodeCID(t *testing.T, s string) cid.Cid {
	t.Helper()
	id, err := cid.Decode(s)
	if err != nil {
		t.Fatalf("cid.Decode(%q): %v", s, err)
	}
	return id
}

func TestRedisServiceDisabled(t *testing.T) {
	svc := NewRedisService(&config.RedisConfig{Enabled: false})
	ctx := context.Background()

	if svc.Enabled() {
		t.Fatal("disabled service reports enabled")
	}
	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := svc.SetExtractResult(ctx, "md5:plain", &model.ExtractResult{Text: "x"}); err != nil {
		t.Fatalf("SetExtractResult: %v", err)
	}
	got, err := svc.GetExtractResult(ctx, "md5:plain")
	if got != nil || err != nil {
		t.Fatalf("GetExtractResult = %v, %v", got, err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var nilSvc *RedisService
	if nilSvc.Enabled() {
		t.Fatal("nil service reports enabled")
	}
}

func TestRecorderLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "videos")
	rec := NewRecorder(&config.StorageConfig{RecordingDir: dir, RecordingFPS: 30, RecordingCodec: "mp4v"})

	if _, err := rec.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Stop before Start = %v", err)
	}
	frame, _ := NewSyntheticSource(8, 8).Read(context.Background())
	if err := rec.Write(frame); err != nil {
		t.Fatalf("Write while idle: %v", err)
	}

	path, err := rec.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !rec.Recording() {
		t.Fatal("Recording() false after Start")
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "recording_") || !strings.HasSuffix(path, ".mp4") {
		t.Fatalf("unexpected recording path %q", path)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("recording dir not created: %v", err)
	}
	if again, _ := rec.Start(); again != path {
		t.Fatalf("second Start returned %q, want %q", again, path)
	}

	stopped, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped != path || rec.Recording() {
		t.Fatalf("Stop returned %q, recording=%v", stopped, rec.Recording())
	}
}

func TestSyntheticSource(t *testing.T) {
	ctx := context.Background()
	a, _ := NewSyntheticSource(24, 16).Read(ctx)
	src := NewSyntheticSource(24, 16)
	b, _ := src.Read(ctx)
	c, _ := src.Read(ctx)

	if string(a.Pix) != string(b.Pix) {
		t.Fatal("synthetic frames are not deterministic")
	}
	if string(b.Pix) == string(c.Pix) {
		t.Fatal("consecutive synthetic frames are identical")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := src.Read(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("Read with cancelled ctx = %v", err)
	}
}

func TestOpenSourceSynthetic(t *testing.T) {
	src, err := OpenSource(&config.StreamConfig{Source: "synthetic", Width: 20, Height: 10})
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()
	img, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if img.Width != 20 || img.Height != 10 {
		t.Fatalf("frame is %dx%d", img.Width, img.Height)
	}
}

func TestNewCodecFromConfig(t *testing.T) {
	codec := NewCodec(&config.WatermarkConfig{Seed: 7, Redundancy: 3, Terminator: true, Lenient: true})
	if codec.Redundant.Seed != 7 || codec.Redundant.Factor != 3 {
		t.Fatalf("redundant = %+v", codec.Redundant)
	}
	if !codec.Plain.Terminator || !codec.Lenient {
		t.Fatal("terminator or lenient flag not applied")
	}

	codec = NewCodec(&config.WatermarkConfig{})
	if codec.Redundant.Factor == 0 {
		t.Fatal("zero redundancy should keep the default factor")
	}
}

func TestDefaultText(t *testing.T) {
	if got := DefaultText(&config.WatermarkConfig{Text: "custom"}); got != "custom" {
		t.Fatalf("DefaultText = %q", got)
	}
	if got := DefaultText(&config.WatermarkConfig{}); got == "" {
		t.Fatal("DefaultText returned empty text")
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(1, 0)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(context.Background()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Acquire = %v, want ErrQueueFull", err)
	}

	release()
	release, err = l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release()
}
