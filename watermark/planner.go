package watermark

import "math/bits"

// DefaultSeed 冗余方案默认使用的置乱种子
const DefaultSeed uint32 = 42

// splitMix64 SplitMix64 伪随机数发生器
//
// 常量与步骤固定，保证同一种子在任何平台、任何实现上产生相同序列。
type splitMix64 struct {
	state uint64
}

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// below 返回 [0, n) 内的均匀整数（Lemire 乘法移位 + 拒绝采样）
func (s *splitMix64) below(n uint64) uint64 {
	hi, lo := bits.Mul64(s.next(), n)
	if lo < n {
		threshold := -n % n
		for lo < threshold {
			hi, lo = bits.Mul64(s.next(), n)
		}
	}
	return hi
}

// Planner 按种子生成 [0, n) 的确定性置换，使用前向 Fisher–Yates
//
// 第 i 步在 [i, n) 中抽取 j 并交换 i、j，输出交换后的第 i 个元素。
// 交换记录保存在稀疏表中，只消耗前缀时内存与前缀长度成正比。
type Planner struct {
	rng     splitMix64
	n       int
	i       int
	swapped map[int]int
}

// NewPlanner 创建置换生成器
func NewPlanner(seed uint32, n int) *Planner {
	if n < 0 {
		n = 0
	}
	return &Planner{
		rng:     splitMix64{state: uint64(seed)},
		n:       n,
		swapped: make(map[int]int),
	}
}

// Len 返回置换长度
func (p *Planner) Len() int {
	return p.n
}

// Next 返回置换中的下一个位置，耗尽时 ok 为 false
func (p *Planner) Next() (pos int, ok bool) {
	if p.i >= p.n {
		return 0, false
	}
	i := p.i
	p.i++

	if i == p.n-1 {
		return p.at(i), true
	}

	j := i + int(p.rng.below(uint64(p.n-i)))
	vi, vj := p.at(i), p.at(j)
	p.swapped[j] = vi
	delete(p.swapped, i)
	return vj, true
}

func (p *Planner) at(k int) int {
	if v, ok := p.swapped[k]; ok {
		return v
	}
	return k
}

// Permutation 返回完整置换
func Permutation(seed uint32, n int) []int {
	p := NewPlanner(seed, n)
	out := make([]int, 0, p.Len())
	for {
		pos, ok := p.Next()
		if !ok {
			return out
		}
		out = append(out, pos)
	}
}
