package model

// StreamCommand 客户端经 WebSocket 发送的 JSON 指令
//
// Type 取值：config、screenshot、compare_images、compare_latest、record。
// config 指令的参数在 Data 中；record 指令的 Action 为 start 或 stop。
type StreamCommand struct {
	Type   string          `json:"type"`
	Data   *StreamSettings `json:"data,omitempty"`
	Action string          `json:"action,omitempty"`
}

// StreamSettings config 指令参数，为 nil 的字段保持不变
type StreamSettings struct {
	WatermarkText       *string `json:"watermarkText,omitempty"`
	WatermarkVisible    *bool   `json:"watermarkVisible,omitempty"`
	WatermarkRedundancy *bool   `json:"watermarkRedundancy,omitempty"`
	FrameInterval       *int    `json:"frameInterval,omitempty"`
	Processing          *bool   `json:"processing,omitempty"`
}

// 指令回复状态
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StreamReply 服务端对指令的 JSON 回复
type StreamReply struct {
	Type       string            `json:"type"`
	Status     string            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Snapshot   *SnapshotInfo     `json:"snapshot,omitempty"`
	Comparison *ComparisonResult `json:"comparison,omitempty"`
	Recording  string            `json:"recording,omitempty"`
}

// FrameMessage 以 msgpack 编码、通过二进制消息推送的视频帧
type FrameMessage struct {
	Seq       uint64 `msgpack:"seq"`
	TraceID   string `msgpack:"trace_id"`
	Width     int    `msgpack:"width"`
	Height    int    `msgpack:"height"`
	Processed bool   `msgpack:"processed"`
	Strategy  string `msgpack:"strategy,omitempty"`
	JPEG      []byte `msgpack:"jpeg"`
}
