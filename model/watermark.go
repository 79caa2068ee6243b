package model

// ExtractResult 水印提取结果
type ExtractResult struct {
	MD5       string `json:"md5"`
	Mode      string `json:"mode"` // plain, redundant
	Text      string `json:"text"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Seed      uint32 `json:"seed,omitempty"`
	Factor    uint8  `json:"factor,omitempty"`
	Cached    bool   `json:"cached"`
	Timestamp int64  `json:"timestamp"`
}

// ExtractResponse 提取响应
type ExtractResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    *ExtractResult `json:"data,omitempty"`
}

// SnapshotInfo 快照存储信息
type SnapshotInfo struct {
	CID       string `json:"cid"`
	Kind      string `json:"kind"` // screenshot, original, watermarked, comparison
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

// ComparisonResult 对比结果
type ComparisonResult struct {
	Original     string `json:"original"`
	Watermarked  string `json:"watermarked"`
	Comparison   string `json:"comparison"`
	Strategy     string `json:"strategy,omitempty"`
	Modified     bool   `json:"modified"`
	Resized      bool   `json:"resized"`
	ChangedSlots int    `json:"changed_slots"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
