package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"
)

func testFrame(t *testing.T, w, h int) *SyntheticSource {
	t.Helper()
	return NewSyntheticSource(w, h)
}

func TestSnapshotStorePutGet(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	defer store.Close()

	img, _ := testFrame(t, 40, 30).Read(context.Background())
	info, err := store.Put(img, KindScreenshot)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Kind != KindScreenshot || info.Width != 40 || info.Height != 30 {
		t.Fatalf("info = %+v", info)
	}

	bmpBytes, err := EncodeBMP(img)
	if err != nil {
		t.Fatalf("EncodeBMP: %v", err)
	}
	want, err := SnapshotCID(bmpBytes)
	if err != nil {
		t.Fatalf("SnapshotCID: %v", err)
	}
	if info.CID != want.String() {
		t.Fatalf("cid = %s, want %s", info.CID, want)
	}

	id, err := cid.Decode(info.CID)
	if err != nil {
		t.Fatalf("cid.Decode: %v", err)
	}
	if !store.Has(id) {
		t.Fatal("Has reported missing snapshot")
	}
	data, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(data, bmpBytes) {
		t.Fatal("Get returned different bytes")
	}

	got, err := store.GetImage(id)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if !got.SameShape(img) || !bytes.Equal(got.Pix, img.Pix) {
		t.Fatal("snapshot is not lossless")
	}

	// 相同内容只存储一次
	again, err := store.Put(img, KindScreenshot)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if again.CID != info.CID {
		t.Fatalf("second Put cid = %s, want %s", again.CID, info.CID)
	}
}

func TestSnapshotStoreMissingAndCorrupt(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	defer store.Close()

	missing, _ := SnapshotCID([]byte("not stored"))
	if _, err := store.Get(missing); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("Get missing = %v", err)
	}
	if _, err := store.Get(cid.Undef); !errors.Is(err, ErrInvalidCID) {
		t.Fatalf("Get undefined = %v", err)
	}

	img, _ := testFrame(t, 8, 8).Read(context.Background())
	info, err := store.Put(img, KindOriginal)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	id, _ := cid.Decode(info.CID)

	path := store.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	enc, _ := zstd.NewWriter(nil)
	defer enc.Close()
	if err := os.WriteFile(path, enc.EncodeAll([]byte("tampered"), nil), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.Get(id); !errors.Is(err, ErrCIDMismatch) {
		t.Fatalf("Get tampered = %v", err)
	}
}

func TestSnapshotStoreLatest(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir)
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}

	src := testFrame(t, 16, 12)
	var cids []string
	for i := 0; i < 3; i++ {
		img, _ := src.Read(context.Background())
		info, err := store.Put(img, KindScreenshot)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		cids = append(cids, info.CID)
	}
	img, _ := src.Read(context.Background())
	if _, err := store.Put(img, KindComparison); err != nil {
		t.Fatalf("Put: %v", err)
	}

	latest := store.Latest(KindScreenshot, 2)
	if len(latest) != 2 || latest[0].CID != cids[1] || latest[1].CID != cids[2] {
		t.Fatalf("Latest = %+v, want %v", latest, cids[1:])
	}
	store.Close()

	// 重新打开后从索引恢复
	reopened, err := NewSnapshotStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Latest(KindScreenshot, 10); len(got) != 3 || got[0].CID != cids[0] {
		t.Fatalf("reopened Latest = %+v", got)
	}
	if got := reopened.Latest(KindComparison, 10); len(got) != 1 {
		t.Fatalf("comparison entries = %d", len(got))
	}
}

func TestNewSnapshotStoreRequiresRoot(t *testing.T) {
	if _, err := NewSnapshotStore(""); err == nil {
		t.Fatal("expected error for empty root")
	}
}
