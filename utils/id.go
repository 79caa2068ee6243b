package utils

import (
	"fmt"
	"time"
)

// GenerateID 生成基于时间戳的ID
func GenerateID() int64 {
	return time.Now().UnixNano()
}

// TimestampName 生成带时间戳的文件名，例如 recording_20250101_120000.mp4
func TimestampName(prefix, ext string) string {
	return fmt.Sprintf("%s_%s%s", prefix, time.Now().Format("20060102_150405"), ext)
}
