// Package framegate 决定实时采集流中哪些帧需要嵌入水印
package framegate

import "github.com/paulchi-intel/lsb-watermark-embedder/watermark"

// DefaultInterval 默认每 5 帧处理一次
const DefaultInterval = 5

// Gate 基于计数器的采样门：计数器为 0 的帧是目标帧，每帧后计数器按间隔取模递增
//
// 只按帧计数，不看时间，无论采集是否抖动都严格 N 帧选 1。
// 非并发安全，由单个流水线独占。
type Gate struct {
	interval int
	counter  int
}

// New 创建采样门，间隔限制在 [1, 30]
func New(interval int) *Gate {
	return &Gate{interval: watermark.ClampInterval(interval)}
}

// Tick 处理一帧，返回该帧是否为目标帧
func (g *Gate) Tick() bool {
	target := g.counter == 0
	g.counter = (g.counter + 1) % g.interval
	return target
}

// Interval 返回当前间隔
func (g *Gate) Interval() int {
	return g.interval
}

// SetInterval 修改间隔并清零计数器
func (g *Gate) SetInterval(interval int) {
	g.interval = watermark.ClampInterval(interval)
	g.counter = 0
}

// Reset 停止或重新开始时清零计数器
func (g *Gate) Reset() {
	g.counter = 0
}
