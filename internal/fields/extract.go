package fields

import (
	"sort"

	"streamscope/internal/payload"
)

// DefaultMaxDepth 默认最大递归深度
const DefaultMaxDepth = 64

// Extractor 从 JSON 值中枚举可筛选的点分字段路径
type Extractor struct {
	MaxDepth int
}

// New 创建提取器，maxDepth <= 0 时使用默认值
func New(maxDepth int) *Extractor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Extractor{MaxDepth: maxDepth}
}

// Extract 返回单个值包含的字段路径集合
func Extract(v payload.Value) map[string]struct{} {
	out := make(map[string]struct{})
	New(0).Collect(v, "", out)
	return out
}

// Collect 将 v 中的字段路径累加到 out
func (e *Extractor) Collect(v payload.Value, prefix string, out map[string]struct{}) {
	e.collect(v, prefix, out, 0)
}

func (e *Extractor) collect(v payload.Value, prefix string, out map[string]struct{}, depth int) {
	if depth >= e.MaxDepth {
		return
	}
	switch v.Kind() {
	case payload.Array:
		e.collectFirst(v, prefix, out, depth)
	case payload.Object:
		v.Each(func(key string, val payload.Value) bool {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			out[path] = struct{}{}
			switch {
			case val.IsObject():
				e.collect(val, path, out, depth+1)
			case val.IsArray():
				e.collectFirst(val, path, out, depth)
			}
			return true
		})
	}
}

// collectFirst 数组视为同构，只取首元素，路径中不加下标；首元素为数组时继续展开
func (e *Extractor) collectFirst(arr payload.Value, prefix string, out map[string]struct{}, depth int) {
	if first := arr.First(); first.IsObject() || first.IsArray() {
		e.collect(first, prefix, out, depth+1)
	}
}

// Available 合并多条消息的字段并按字典序排序，未能解码的消息不贡献字段
func (e *Extractor) Available(values []payload.Value) []string {
	set := make(map[string]struct{})
	for _, v := range values {
		e.Collect(v, "", set)
	}
	return Sorted(set)
}

// Sorted 将字段集合转为有序切片
func Sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
