package watermark

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

const (
	// OverlayAlpha 水印层的混合权重
	OverlayAlpha = 0.35

	shadowOffset = 3
	tileGap      = 80
)

var (
	textColor   = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	shadowColor = color.RGBA{R: 0, G: 0, B: 0, A: 0}
)

// textStyle 文字字号与粗细，字号随图像短边缩放
type textStyle struct {
	scale     float64
	thickness int
}

func styleFor(width, height int, divisor float64) textStyle {
	scale := float64(min(width, height)) / divisor
	return textStyle{
		scale:     scale,
		thickness: max(2, int(scale*3)),
	}
}

func (s textStyle) size(text string) image.Point {
	return gocv.GetTextSize(text, gocv.FontHersheySimplex, s.scale, s.thickness)
}

// drawShadowed 先画偏移的黑色阴影再画白色文字，org 为文字基线左下角
func drawShadowed(dst *gocv.Mat, text string, org image.Point, s textStyle) {
	gocv.PutText(dst, text, org.Add(image.Pt(shadowOffset, shadowOffset)),
		gocv.FontHersheySimplex, s.scale, shadowColor, s.thickness+1)
	gocv.PutText(dst, text, org, gocv.FontHersheySimplex, s.scale, textColor, s.thickness)
}

// blendOverlay 在原图副本上绘制后按 OverlayAlpha 与原图混合
func blendOverlay(img *Image, draw func(overlay *gocv.Mat)) (*Image, error) {
	src, err := img.ToMat()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	overlay := src.Clone()
	defer overlay.Close()
	draw(&overlay)

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(overlay, OverlayAlpha, src, 1-OverlayAlpha, 0, &blended)

	return FromMat(blended)
}

// CenteredOverlay 在画面正中绘制一次带阴影的半透明文字
type CenteredOverlay struct{}

func (o *CenteredOverlay) Name() string {
	return "visible"
}

// Origin 返回居中文字的基线起点
func (o *CenteredOverlay) Origin(width, height int, text string) image.Point {
	s := styleFor(width, height, 500)
	ts := s.size(text)
	return image.Pt((width-ts.X)/2, (height+ts.Y)/2)
}

func (o *CenteredOverlay) Embed(img *Image, text string) (*Image, error) {
	if err := img.validate("CenteredOverlay.Embed"); err != nil {
		return nil, err
	}
	s := styleFor(img.Width, img.Height, 500)
	org := o.Origin(img.Width, img.Height, text)

	return blendOverlay(img, func(overlay *gocv.Mat) {
		drawShadowed(overlay, text, org, s)
	})
}

// TiledOverlay 以错位砖块网格重复绘制文字铺满画面，裁剪后仍可辨认
type TiledOverlay struct{}

func (o *TiledOverlay) Name() string {
	return "visible-tiled"
}

// TileOrigins 返回每个文字块的基线起点，奇数行水平错开半个间距
func (o *TiledOverlay) TileOrigins(width, height int, text string) []image.Point {
	s := styleFor(width, height, 1000)
	ts := s.size(text)

	spacingX := ts.X + tileGap
	spacingY := ts.Y + tileGap
	rows := height/spacingY + 2
	cols := width/spacingX + 2
	startX := (width%spacingX)/2 - spacingX
	startY := (height % spacingY) / 2

	origins := make([]image.Point, 0, rows*cols)
	for row := 0; row < rows; row++ {
		y := startY + row*spacingY
		offsetX := (row % 2) * (spacingX / 2)
		for col := 0; col < cols; col++ {
			origins = append(origins, image.Pt(startX+col*spacingX+offsetX, y))
		}
	}
	return origins
}

func (o *TiledOverlay) Embed(img *Image, text string) (*Image, error) {
	if err := img.validate("TiledOverlay.Embed"); err != nil {
		return nil, err
	}
	s := styleFor(img.Width, img.Height, 1000)
	origins := o.TileOrigins(img.Width, img.Height, text)

	return blendOverlay(img, func(overlay *gocv.Mat) {
		for _, org := range origins {
			drawShadowed(overlay, text, org, s)
		}
	})
}
