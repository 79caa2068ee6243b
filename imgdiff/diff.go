// Package imgdiff 对比水印嵌入前后的像素差异并生成三联对比图
package imgdiff

import (
	"image"
	"image/color"

	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"gocv.io/x/gocv"
)

// Amplification 差异放大倍数，任何非零差异都会饱和为 255
const Amplification = 1000

// DefaultLabels 三联图默认标签
var DefaultLabels = [3]string{"Original", "Watermarked", "Difference (x1000)"}

// Result 对比结果
type Result struct {
	A         *watermark.Image
	B         *watermark.Image
	Amplified *watermark.Image
	// Resized 表示 B 的尺寸与 A 不同，已被双线性缩放到 A 的尺寸
	Resized bool
}

// Compare 计算 |A-B|*1000 并截断到 [0,255]
//
// 尺寸不同时 B 使用 gocv.InterpolationLinear（OpenCV 默认的双线性插值）缩放到 A 的尺寸，
// 缩放会改变像素值，因此这种情况下的差异不再逐像素精确。
func Compare(a, b *watermark.Image) (*Result, error) {
	matA, err := a.ToMat()
	if err != nil {
		return nil, err
	}
	defer matA.Close()
	matB, err := b.ToMat()
	if err != nil {
		return nil, err
	}
	defer matB.Close()

	res := &Result{A: a, B: b}
	if !a.SameShape(b) {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(matB, &resized, image.Point{X: a.Width, Y: a.Height}, 0, 0, gocv.InterpolationLinear)
		matB.Close()
		matB = resized.Clone()

		res.B, err = watermark.FromMat(matB)
		if err != nil {
			return nil, err
		}
		res.Resized = true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(matA, matB, &diff)

	amplified := gocv.NewMat()
	defer amplified.Close()
	gocv.ConvertScaleAbs(diff, &amplified, Amplification, 0)

	res.Amplified, err = watermark.FromMat(amplified)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ChangedSlots 返回放大差异图中非零的通道槽位数
func (r *Result) ChangedSlots() int {
	n := 0
	for _, v := range r.Amplified.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Compose 横向拼接 A、B 与放大差异图，并在每块左上角写入标签，输出宽度为 3 倍
func (r *Result) Compose(labels [3]string) (*watermark.Image, error) {
	panels := []*watermark.Image{r.A, r.B, r.Amplified}
	mats := make([]gocv.Mat, 0, len(panels))
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	for _, p := range panels {
		m, err := p.ToMat()
		if err != nil {
			return nil, err
		}
		mats = append(mats, m)
	}

	left := gocv.NewMat()
	defer left.Close()
	gocv.Hconcat(mats[0], mats[1], &left)

	comparison := gocv.NewMat()
	defer comparison.Close()
	gocv.Hconcat(left, mats[2], &comparison)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 0}
	w := r.A.Width
	for i, label := range labels {
		gocv.PutText(&comparison, label, image.Pt(i*w+10, 30), gocv.FontHersheySimplex, 0.8, white, 2)
	}

	return watermark.FromMat(comparison)
}
