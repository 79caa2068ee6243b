package watermark

import (
	"bytes"
	"math"
	"testing"
)

func makeTestImage(w, h int) *Image {
	img := NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * Channels
			img.Pix[i+0] = uint8((x * 7) ^ (y * 11))
			img.Pix[i+1] = uint8((x * 43) + (y * 13))
			img.Pix[i+2] = uint8((x * 17) ^ (y * 31))
		}
	}
	return img
}

func TestEncodeBits(t *testing.T) {
	bits, err := EncodeBits("A")
	if err != nil {
		t.Fatalf("EncodeBits: %v", err)
	}
	want := []byte{0, 1, 0, 0, 0, 0, 0, 1}
	if !bytes.Equal(bits, want) {
		t.Fatalf("EncodeBits(A) = %v, want %v", bits, want)
	}

	bits, err = EncodeBits("é")
	if err != nil {
		t.Fatalf("EncodeBits latin-1: %v", err)
	}
	if got := DecodeBits(bits, 1); got != "é" {
		t.Fatalf("DecodeBits = %q, want %q", got, "é")
	}

	if _, err := EncodeBits("水印"); !IsKind(err, KindEncoding) {
		t.Fatalf("expected encoding error for multi-byte characters, got %v", err)
	}
}

func TestDecodeBitsShortInput(t *testing.T) {
	bits, _ := EncodeBits("AB")
	if got := DecodeBits(bits[:12], 2); got != "A" {
		t.Fatalf("DecodeBits with 12 bits = %q, want %q", got, "A")
	}
}

func TestPlainLSBConcreteCase(t *testing.T) {
	src := makeTestImage(10, 10)
	orig := src.Clone()
	p := &PlainLSB{}

	out, err := p.Embed(src, "ABC")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if out.Width != 10 || out.Height != 10 || len(out.Pix) != 300 {
		t.Fatalf("output shape changed: %dx%d (%d bytes)", out.Width, out.Height, len(out.Pix))
	}
	if !bytes.Equal(src.Pix, orig.Pix) {
		t.Fatal("Embed mutated its input")
	}

	bits, _ := EncodeBits("ABC")
	for i := range out.Pix {
		if i < 24 {
			if out.Pix[i]&1 != bits[i] {
				t.Fatalf("slot %d LSB = %d, want %d", i, out.Pix[i]&1, bits[i])
			}
			if out.Pix[i]&0xFE != orig.Pix[i]&0xFE {
				t.Fatalf("slot %d high bits changed", i)
			}
			continue
		}
		if out.Pix[i] != orig.Pix[i] {
			t.Fatalf("slot %d outside payload changed", i)
		}
	}

	got, err := p.Extract(out, 3)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "ABC" {
		t.Fatalf("Extract = %q, want %q", got, "ABC")
	}
}

func TestPlainLSBRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		w, h int
		text string
	}{
		{name: "short", w: 16, h: 16, text: "host-01"},
		{name: "exact_fit", w: 8, h: 3, text: "abc"},
		{name: "latin1", w: 32, h: 8, text: "café über"},
		{name: "single_row", w: 64, h: 1, text: "row"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &PlainLSB{}
			out, err := p.Embed(makeTestImage(tc.w, tc.h), tc.text)
			if err != nil {
				t.Fatalf("Embed: %v", err)
			}
			got, err := p.Extract(out, len([]rune(tc.text)))
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got != tc.text {
				t.Fatalf("Extract = %q, want %q", got, tc.text)
			}
		})
	}
}

func TestPlainLSBCapacityBoundary(t *testing.T) {
	p := &PlainLSB{}

	// 8 位载荷 == 4*2 像素
	if _, err := p.Embed(makeTestImage(4, 2), "A"); err != nil {
		t.Fatalf("payload equal to rows*cols should fit: %v", err)
	}

	// 8 位载荷 == 7 像素 + 1
	_, err := p.Embed(makeTestImage(7, 1), "A")
	if !IsKind(err, KindCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
}

func TestPlainLSBExtractTruncated(t *testing.T) {
	p := &PlainLSB{}
	img := makeTestImage(2, 2)
	if _, err := p.Extract(img, 2); !IsKind(err, KindTruncated) {
		t.Fatalf("expected truncation error, got %v", err)
	}
	if _, err := p.Extract(img, -1); !IsKind(err, KindTruncated) {
		t.Fatalf("expected truncation error for negative length, got %v", err)
	}
}

func TestPlainLSBExtractHugeLength(t *testing.T) {
	p := &PlainLSB{}
	img := makeTestImage(4, 4)
	for _, length := range []int{1 << 60, 1 << 61, math.MaxInt} {
		if _, err := p.Extract(img, length); !IsKind(err, KindTruncated) {
			t.Fatalf("Extract(%d): expected truncation error, got %v", length, err)
		}
	}

	bits, _ := EncodeBits("AB")
	if got := DecodeBits(bits, 1<<61); got != "AB" {
		t.Fatalf("DecodeBits with huge length = %q, want %q", got, "AB")
	}
	if got := DecodeBits(nil, -1); got != "" {
		t.Fatalf("DecodeBits with negative length = %q, want empty", got)
	}
}

func TestPlainLSBTerminator(t *testing.T) {
	p := &PlainLSB{Terminator: true}
	out, err := p.Embed(makeTestImage(20, 20), "node-7")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	got, err := p.ExtractTerminated(out)
	if err != nil {
		t.Fatalf("ExtractTerminated: %v", err)
	}
	if got != "node-7" {
		t.Fatalf("ExtractTerminated = %q, want %q", got, "node-7")
	}

	// 终止符也计入容量：6 个字符 + 终止符 = 56 位
	if _, err := p.Embed(makeTestImage(7, 7), "node-7"); !IsKind(err, KindCapacity) {
		t.Fatalf("expected capacity error with terminator, got %v", err)
	}
}

func TestCodecSelect(t *testing.T) {
	c := NewCodec()
	for _, tc := range []struct {
		cfg  EmbeddingConfig
		want string
	}{
		{cfg: EmbeddingConfig{}, want: "lsb"},
		{cfg: EmbeddingConfig{Redundant: true}, want: "lsb-redundant"},
		{cfg: EmbeddingConfig{Visible: true}, want: "visible"},
		{cfg: EmbeddingConfig{Visible: true, Redundant: true}, want: "visible-tiled"},
	} {
		if got := c.Select(tc.cfg).Name(); got != tc.want {
			t.Errorf("Select(%+v) = %s, want %s", tc.cfg, got, tc.want)
		}
	}
}

func TestCodecCapacityModes(t *testing.T) {
	img := makeTestImage(2, 2)

	strict := NewCodec()
	res, err := strict.Embed(EmbeddingConfig{}, img, "too long")
	if !IsKind(err, KindCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if res.Modified || res.Image != img {
		t.Fatal("failed embed must return the unmodified input")
	}

	lenient := NewCodec()
	lenient.Lenient = true
	res, err = lenient.Embed(EmbeddingConfig{Redundant: true}, img, "too long")
	if err != nil {
		t.Fatalf("lenient embed returned error: %v", err)
	}
	if res.Modified || res.Image != img {
		t.Fatal("lenient embed must return the unmodified input")
	}
}

func TestCodecEmptyText(t *testing.T) {
	img := makeTestImage(8, 8)
	res, err := NewCodec().Embed(EmbeddingConfig{}, img, "")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if res.Modified || res.Image != img {
		t.Fatal("empty text must be a no-op")
	}
}

func TestCodecRejectsBadImage(t *testing.T) {
	bad := &Image{Width: 4, Height: 4, Pix: make([]byte, 10)}
	if _, err := NewCodec().Embed(EmbeddingConfig{}, bad, "A"); !IsKind(err, KindImage) {
		t.Fatalf("expected image error, got %v", err)
	}
}

func TestClampInterval(t *testing.T) {
	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 5: 5, 30: 30, 31: 30, 500: 30} {
		if got := ClampInterval(in); got != want {
			t.Errorf("ClampInterval(%d) = %d, want %d", in, got, want)
		}
	}
}
