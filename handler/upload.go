package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ipfs/go-cid"
	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/imgdiff"
	"github.com/paulchi-intel/lsb-watermark-embedder/model"
	"github.com/paulchi-intel/lsb-watermark-embedder/service"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"go.uber.org/zap"
)

const (
	ModePlain     = "plain"
	ModeRedundant = "redundant"
)

type WatermarkHandler struct {
	cfg          *config.Config
	redisService *service.RedisService
	codec        *watermark.Codec
	store        *service.SnapshotStore
	limiter      *service.Limiter
	defaultText  string
}

func NewWatermarkHandler(cfg *config.Config, redis *service.RedisService, codec *watermark.Codec, store *service.SnapshotStore) *WatermarkHandler {
	return &WatermarkHandler{
		cfg:          cfg,
		redisService: redis,
		codec:        codec,
		store:        store,
		limiter:      service.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.QueueTimeout),
		defaultText:  service.DefaultText(&cfg.Watermark),
	}
}

// upload 已保存到上传目录的文件
type upload struct {
	path string
	md5  string
	size int64
}

// receive 校验并保存上传文件，失败时已写入错误响应
func (h *WatermarkHandler) receive(c *gin.Context, field string) (*upload, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.String("field", field), zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("请上传图片文件 (%s)", field),
			Error:   err.Error(),
		})
		return nil, false
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return nil, false
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG/BMP",
		})
		return nil, false
	}

	ext := filepath.Ext(file.Filename)
	filename := fmt.Sprintf("%d%s", utils.GenerateID(), ext)
	savePath := filepath.Join(h.cfg.Upload.UploadDir, filename)

	if err := c.SaveUploadedFile(file, savePath); err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "保存文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}

	md5, err := utils.FileMD5(savePath)
	if err != nil {
		h.cleanup(savePath)
		utils.Logger.Error("failed to calculate md5", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "计算文件哈希失败",
			Error:   err.Error(),
		})
		return nil, false
	}

	utils.Logger.Info("file uploaded",
		zap.String("field", field),
		zap.String("filename", filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	return &upload{path: savePath, md5: md5, size: file.Size}, true
}

// cleanup 处理完成后删除上传文件（如果配置启用）
func (h *WatermarkHandler) cleanup(path string) {
	if !h.cfg.Upload.CleanupFiles {
		return
	}
	if err := os.Remove(path); err != nil {
		utils.Logger.Warn("failed to delete temp file",
			zap.String("file", path),
			zap.Error(err))
	} else {
		utils.Logger.Debug("temp file deleted",
			zap.String("file", path))
	}
}

// load 读取已保存的上传图片
func (h *WatermarkHandler) load(c *gin.Context, up *upload) (*watermark.Image, bool) {
	img, err := service.ReadImageFile(up.path)
	if err != nil {
		utils.Logger.Error("failed to read image", zap.String("md5", up.md5), zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "无法解析图片",
			Error:   err.Error(),
		})
		return nil, false
	}
	return img, true
}

// acquire 获取处理名额，队列已满时已写入 503 响应
func (h *WatermarkHandler) acquire(c *gin.Context) (func(), bool) {
	release, err := h.limiter.Acquire(c.Request.Context())
	if err != nil {
		utils.Logger.Warn("processing queue full", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Success: false,
			Message: err.Error(),
		})
		return nil, false
	}
	return release, true
}

// Embed 嵌入水印，返回 PNG
func (h *WatermarkHandler) Embed(c *gin.Context) {
	up, ok := h.receive(c, "image")
	if !ok {
		return
	}
	defer h.cleanup(up.path)

	release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	img, ok := h.load(c, up)
	if !ok {
		return
	}

	text := c.DefaultPostForm("text", h.defaultText)
	cfg := watermark.EmbeddingConfig{
		Visible:   formBool(c, "visible", h.cfg.Watermark.Visible),
		Redundant: formBool(c, "redundant", h.cfg.Watermark.Redundant),
	}
	codec := *h.codec
	codec.Lenient = formBool(c, "lenient", h.codec.Lenient)

	res, err := codec.Embed(cfg, img, text)
	if err != nil {
		utils.Logger.Warn("failed to embed watermark",
			zap.String("md5", up.md5),
			zap.String("strategy", res.Strategy),
			zap.Error(err))
		c.JSON(statusFor(err), model.ErrorResponse{
			Success: false,
			Message: "水印嵌入失败",
			Error:   err.Error(),
		})
		return
	}

	png, err := service.EncodePNG(res.Image)
	if err != nil {
		utils.Logger.Error("failed to encode png", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "图片编码失败",
			Error:   err.Error(),
		})
		return
	}

	utils.Logger.Info("watermark embedded",
		zap.String("md5", up.md5),
		zap.String("strategy", res.Strategy),
		zap.Bool("modified", res.Modified))

	c.Header("X-Watermark-Strategy", res.Strategy)
	c.Header("X-Watermark-Modified", strconv.FormatBool(res.Modified))
	c.Data(http.StatusOK, "image/png", png)
}

// Extract 提取水印文本，结果按图片 MD5 与参数缓存
func (h *WatermarkHandler) Extract(c *gin.Context) {
	mode := c.DefaultPostForm("mode", ModeRedundant)
	if mode != ModePlain && mode != ModeRedundant {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "mode 只能是 plain 或 redundant",
		})
		return
	}
	length := -1
	if raw := c.PostForm("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Success: false,
				Message: "length 参数无效",
			})
			return
		}
		length = n
	}

	up, ok := h.receive(c, "image")
	if !ok {
		return
	}
	defer h.cleanup(up.path)

	// 检查缓存（带参数区分）
	ctx := context.Background()
	cacheKey := utils.CacheKey(up.md5, mode)
	if mode == ModePlain {
		cacheKey = utils.CacheKey(up.md5, mode, strconv.Itoa(length))
	}

	cachedResult, err := h.redisService.GetExtractResult(ctx, cacheKey)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cachedResult != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", cacheKey))
		cachedResult.Cached = true
		c.JSON(http.StatusOK, model.ExtractResponse{
			Success: true,
			Message: "提取成功（来自缓存）",
			Data:    cachedResult,
		})
		return
	}

	release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	img, ok := h.load(c, up)
	if !ok {
		return
	}

	result := &model.ExtractResult{
		MD5:       up.md5,
		Mode:      mode,
		Width:     img.Width,
		Height:    img.Height,
		Timestamp: time.Now().Unix(),
	}
	switch {
	case mode == ModeRedundant:
		if result.Text, err = h.codec.Redundant.Extract(img); err == nil {
			header := watermark.ReadHeader(img)
			result.Seed, result.Factor = header.Seed, header.Factor
		}
	case length >= 0:
		result.Text, err = h.codec.Plain.Extract(img, length)
	default:
		result.Text, err = h.codec.Plain.ExtractTerminated(img)
	}
	if err != nil {
		utils.Logger.Warn("failed to extract watermark",
			zap.String("md5", up.md5),
			zap.String("mode", mode),
			zap.Error(err))
		c.JSON(statusFor(err), model.ErrorResponse{
			Success: false,
			Message: "水印提取失败",
			Error:   err.Error(),
		})
		return
	}

	// 保存到缓存
	if err := h.redisService.SetExtractResult(ctx, cacheKey, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.ExtractResponse{
		Success: true,
		Message: "提取成功",
		Data:    result,
	})
}

// Compare 对比两张上传图片，返回 JPEG 三联图
func (h *WatermarkHandler) Compare(c *gin.Context) {
	upA, ok := h.receive(c, "image_a")
	if !ok {
		return
	}
	defer h.cleanup(upA.path)
	upB, ok := h.receive(c, "image_b")
	if !ok {
		return
	}
	defer h.cleanup(upB.path)

	release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	a, ok := h.load(c, upA)
	if !ok {
		return
	}
	b, ok := h.load(c, upB)
	if !ok {
		return
	}

	diff, err := imgdiff.Compare(a, b)
	if err != nil {
		c.JSON(statusFor(err), model.ErrorResponse{
			Success: false,
			Message: "图片对比失败",
			Error:   err.Error(),
		})
		return
	}
	composite, err := diff.Compose(imgdiff.DefaultLabels)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "生成对比图失败",
			Error:   err.Error(),
		})
		return
	}
	jpeg, err := service.EncodeJPEG(composite, h.cfg.Stream.JPEGQuality)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "图片编码失败",
			Error:   err.Error(),
		})
		return
	}

	c.Header("X-Changed-Slots", strconv.Itoa(diff.ChangedSlots()))
	c.Header("X-Resized", strconv.FormatBool(diff.Resized))
	c.Data(http.StatusOK, "image/jpeg", jpeg)
}

// GetSnapshot 根据 CID 返回 BMP 快照
func (h *WatermarkHandler) GetSnapshot(c *gin.Context) {
	id, err := cid.Decode(c.Param("cid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "CID参数无效",
			Error:   err.Error(),
		})
		return
	}

	data, err := h.store.Get(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrSnapshotNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, model.ErrorResponse{
			Success: false,
			Message: "未找到该快照",
			Error:   err.Error(),
		})
		return
	}

	c.Data(http.StatusOK, "image/bmp", data)
}

func (h *WatermarkHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func formBool(c *gin.Context, key string, def bool) bool {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// statusFor 将水印错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case watermark.IsKind(err, watermark.KindCapacity), watermark.IsKind(err, watermark.KindTruncated):
		return http.StatusUnprocessableEntity
	case watermark.IsKind(err, watermark.KindEncoding), watermark.IsKind(err, watermark.KindImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Register 注册水印相关路由
func (h *WatermarkHandler) Register(api *gin.RouterGroup) {
	api.POST("/embed", h.Embed)
	api.POST("/extract", h.Extract)
	api.POST("/compare", h.Compare)
	api.GET("/snapshots/:cid", h.GetSnapshot)
}
