package service

import (
	"fmt"

	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"gocv.io/x/gocv"
)

// DecodeImage 解码 JPEG/PNG/BMP 字节为 BGR 图像
func DecodeImage(data []byte) (*watermark.Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode image")
	}
	return watermark.FromMat(mat)
}

// ReadImageFile 读取图片文件
func ReadImageFile(path string) (*watermark.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	defer mat.Close()
	return watermark.FromMat(mat)
}

// EncodeJPEG 按给定质量编码为 JPEG
func EncodeJPEG(img *watermark.Image, quality int) ([]byte, error) {
	mat, err := img.ToMat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// EncodePNG 无损编码为 PNG，LSB 水印只能通过无损格式保存
func EncodePNG(img *watermark.Image) ([]byte, error) {
	mat, err := img.ToMat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
