package watermark

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Channels 每个像素的通道数（BGR）
const Channels = 3

// Image 内存中的 BGR 图像，Pix 按行优先、通道次序排列，与 gocv 的 CV_8UC3 布局一致
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// NewImage 创建全黑图像
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*Channels),
	}
}

// Slots 返回通道槽位总数
func (m *Image) Slots() int {
	return m.Width * m.Height * Channels
}

// Clone 深拷贝图像
func (m *Image) Clone() *Image {
	pix := make([]byte, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Pix: pix}
}

// SameShape 判断两幅图像尺寸是否一致
func (m *Image) SameShape(o *Image) bool {
	return m.Width == o.Width && m.Height == o.Height
}

func (m *Image) validate(op string) error {
	if m == nil {
		return newError(KindImage, op, "nil image")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return newError(KindImage, op, "invalid size %dx%d", m.Width, m.Height)
	}
	if len(m.Pix) != m.Slots() {
		return newError(KindImage, op, "pixel buffer has %d bytes, want %d", len(m.Pix), m.Slots())
	}
	return nil
}

// FromMat 从 gocv.Mat 复制像素，BGRA 与灰度图会先转换为 BGR
func FromMat(mat gocv.Mat) (*Image, error) {
	if mat.Empty() {
		return nil, newError(KindImage, "FromMat", "empty mat")
	}

	src := mat
	switch mat.Channels() {
	case 3:
	case 4:
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(mat, &bgr, gocv.ColorBGRAToBGR)
		src = bgr
	case 1:
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(mat, &bgr, gocv.ColorGrayToBGR)
		src = bgr
	default:
		return nil, newError(KindImage, "FromMat", "unsupported channel count %d", mat.Channels())
	}

	if src.Type() != gocv.MatTypeCV8UC3 {
		return nil, newError(KindImage, "FromMat", "unsupported mat type %v", src.Type())
	}

	return &Image{
		Width:  src.Cols(),
		Height: src.Rows(),
		Pix:    src.ToBytes(),
	}, nil
}

// ToMat 转换为 CV_8UC3 的 gocv.Mat，调用方负责 Close
func (m *Image) ToMat() (gocv.Mat, error) {
	if err := m.validate("ToMat"); err != nil {
		return gocv.NewMat(), err
	}
	shared, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8UC3, m.Pix)
	if err != nil {
		return gocv.NewMat(), wrapError(KindImage, "ToMat", "failed to build mat", err)
	}
	defer shared.Close()

	return shared.Clone(), nil
}

// FromImage 从标准库 image.Image 复制像素
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			out.Pix[i+0] = c.B
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.R
			i += Channels
		}
	}
	return out
}

// ToNRGBA 转换为不透明的 image.NRGBA
func (m *Image) ToNRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for p := 0; p < m.Width*m.Height; p++ {
		dst.Pix[p*4+0] = m.Pix[p*Channels+2]
		dst.Pix[p*4+1] = m.Pix[p*Channels+1]
		dst.Pix[p*4+2] = m.Pix[p*Channels+0]
		dst.Pix[p*4+3] = 255
	}
	return dst
}
