package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/model"
	"github.com/paulchi-intel/lsb-watermark-embedder/service"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/paulchi-intel/lsb-watermark-embedder/watermark"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// SourceFactory 为每个连接打开一个帧来源
type SourceFactory func() (service.FrameSource, error)

type StreamHandler struct {
	cfg        *config.Config
	codec      *watermark.Codec
	store      *service.SnapshotStore
	comparison *service.ComparisonService
	openSource SourceFactory
	upgrader   websocket.Upgrader
}

func NewStreamHandler(cfg *config.Config, codec *watermark.Codec, store *service.SnapshotStore, comparison *service.ComparisonService, openSource SourceFactory) *StreamHandler {
	return &StreamHandler{
		cfg:        cfg,
		codec:      codec,
		store:      store,
		comparison: comparison,
		openSource: openSource,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// wsConn 串行化对同一连接的写入
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Send 以 msgpack 编码帧并作为二进制消息发送
func (w *wsConn) Send(ctx context.Context, frame *model.FrameMessage) error {
	data, err := msgpack.Marshal(frame)
	if err != nil {
		return err
	}
	return w.write(websocket.BinaryMessage, data)
}

func (w *wsConn) reply(r model.StreamReply) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, data)
}

func (w *wsConn) write(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(messageType, data)
}

// Stream 建立 WebSocket 连接，推送视频帧并处理客户端指令
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	source, err := h.openSource()
	if err != nil {
		utils.Logger.Error("failed to open frame source", zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "frame source unavailable"))
		return
	}
	defer source.Close()

	recorder := service.NewRecorder(&h.cfg.Storage)
	pipeline := service.NewPipeline(source, h.codec, service.Settings{
		Text:          service.DefaultText(&h.cfg.Watermark),
		Visible:       h.cfg.Watermark.Visible,
		Redundant:     h.cfg.Watermark.Redundant,
		FrameInterval: h.cfg.Stream.FrameInterval,
	}, service.PipelineOptions{
		MaxFPS:      h.cfg.Stream.MaxFPS,
		JPEGQuality: h.cfg.Stream.JPEGQuality,
		Recorder:    recorder,
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ws := &wsConn{conn: conn}
	go func() {
		defer cancel()
		h.readCommands(ctx, conn, ws, pipeline)
	}()

	utils.Logger.Info("stream started", zap.String("ip", c.ClientIP()))
	err = pipeline.Run(ctx, ws)

	if recorder.Recording() {
		if path, err := recorder.Stop(); err != nil {
			utils.Logger.Warn("failed to finish recording", zap.String("path", path), zap.Error(err))
		}
	}

	stats := pipeline.Stats()
	utils.Logger.Info("stream closed",
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("watermarked", stats.Watermarked),
		zap.Uint64("failed", stats.Failed),
		zap.Float64("fps", stats.FPS),
		zap.NamedError("reason", err))
}

func (h *StreamHandler) readCommands(ctx context.Context, conn *websocket.Conn, ws *wsConn, pipeline *service.Pipeline) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Logger.Warn("failed to read websocket message", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd model.StreamCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			utils.Logger.Warn("invalid stream command", zap.Error(err))
			_ = ws.reply(model.StreamReply{Type: "error", Status: model.StatusError, Message: "无效的指令"})
			continue
		}

		reply, image := h.handleCommand(ctx, &cmd, pipeline)
		if err := ws.reply(reply); err != nil {
			return
		}
		if image != nil {
			if err := ws.write(websocket.BinaryMessage, image); err != nil {
				return
			}
		}
	}
}

// handleCommand 执行一条指令，返回回复与可选的附带图片
func (h *StreamHandler) handleCommand(ctx context.Context, cmd *model.StreamCommand, pipeline *service.Pipeline) (model.StreamReply, []byte) {
	reply := model.StreamReply{Type: cmd.Type, Status: model.StatusSuccess}
	fail := func(msg string, err error) (model.StreamReply, []byte) {
		utils.Logger.Warn("stream command failed", zap.String("type", cmd.Type), zap.Error(err))
		reply.Status = model.StatusError
		reply.Message = msg
		if err != nil {
			reply.Message += ": " + err.Error()
		}
		return reply, nil
	}

	switch cmd.Type {
	case "config":
		pipeline.Update(cmd.Data)
		return reply, nil

	case "screenshot":
		frame, err := h.frame(ctx, pipeline)
		if err != nil {
			return fail("截图失败", err)
		}
		info, err := h.store.Put(frame, service.KindScreenshot)
		if err != nil {
			return fail("截图失败", err)
		}
		reply.Snapshot = info
		return reply, nil

	case "compare_images":
		frame, err := h.frame(ctx, pipeline)
		if err != nil {
			return fail("截图比较失败", err)
		}
		cmp, err := h.comparison.CaptureAndCompare(frame, pipeline.Settings())
		if err != nil {
			return fail("截图比较失败", err)
		}
		return h.comparisonReply(reply, cmp)

	case "compare_latest":
		cmp, err := h.comparison.CompareLatest()
		if err != nil {
			return fail("截图比较失败", err)
		}
		return h.comparisonReply(reply, cmp)

	case "record":
		recorder := pipeline.Recorder()
		switch cmd.Action {
		case "start":
			path, err := recorder.Start()
			if err != nil {
				return fail("开始录像失败", err)
			}
			reply.Recording = path
		case "stop":
			path, err := recorder.Stop()
			if err != nil {
				return fail("停止录像失败", err)
			}
			reply.Recording = path
		default:
			return fail("未知的录像操作 "+cmd.Action, nil)
		}
		return reply, nil

	default:
		return fail("未知的指令 "+cmd.Type, nil)
	}
}

func (h *StreamHandler) comparisonReply(reply model.StreamReply, cmp *service.Comparison) (model.StreamReply, []byte) {
	reply.Message = "截图比较完成"
	reply.Comparison = &cmp.Result

	image, err := service.EncodeJPEG(cmp.Composite, h.cfg.Stream.JPEGQuality)
	if err != nil {
		utils.Logger.Warn("failed to encode comparison image", zap.Error(err))
		return reply, nil
	}
	return reply, image
}

// frame 返回流水线最近一帧，尚无帧时从连接已打开的来源采集一帧
func (h *StreamHandler) frame(ctx context.Context, pipeline *service.Pipeline) (*watermark.Image, error) {
	if frame, ok := pipeline.LastFrame(); ok {
		return frame, nil
	}
	return pipeline.Capture(ctx)
}

// Register 注册流路由
func (h *StreamHandler) Register(api *gin.RouterGroup) {
	api.GET("/stream", h.Stream)
}
