package rules

import (
	"fmt"
	"strings"

	"streamscope/internal/payload"
	"streamscope/pkg/model"
)

// Engine 字段筛选引擎，条件之间为 AND 关系，不持有也不修改消息
type Engine struct {
	conds []model.FilterCondition
}

func New(conds []model.FilterCondition) *Engine {
	return &Engine{conds: model.CloneFilters(conds)}
}

func (e *Engine) Update(conds []model.FilterCondition) { e.conds = model.CloneFilters(conds) }

// Active 是否存在生效的筛选条件
func (e *Engine) Active() bool { return len(e.conds) > 0 }

// Conditions 返回条件副本
func (e *Engine) Conditions() []model.FilterCondition { return model.CloneFilters(e.conds) }

// Match 解码消息文本并判断是否满足全部条件
func (e *Engine) Match(data string) bool {
	if len(e.conds) == 0 {
		return true
	}
	v, ok := payload.Decode(data)
	return e.MatchValue(v, ok)
}

// MatchValue 对已解码的消息判断，decoded 为 false 表示非 JSON
func (e *Engine) MatchValue(v payload.Value, decoded bool) bool {
	if len(e.conds) == 0 {
		return true
	}
	// 非 JSON 消息不参与非空条件集的匹配
	if !decoded {
		return false
	}
	for i := range e.conds {
		if !cond(v, e.conds[i]) {
			return false
		}
	}
	return true
}

// Filter 稳定过滤，保持输入顺序；条件为空时原样返回
func (e *Engine) Filter(msgs []model.Message) []model.Message {
	if len(e.conds) == 0 {
		return msgs
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if e.Match(m.Data) {
			out = append(out, m)
		}
	}
	return out
}

// FilterDecoded 使用预先解码的载荷过滤，values 与 msgs 一一对应
func (e *Engine) FilterDecoded(msgs []model.Message, values []payload.Value, decoded []bool) []model.Message {
	if len(e.conds) == 0 {
		return msgs
	}
	out := make([]model.Message, 0, len(msgs))
	for i, m := range msgs {
		if e.MatchValue(values[i], decoded[i]) {
			out = append(out, m)
		}
	}
	return out
}

func cond(v payload.Value, c model.FilterCondition) bool {
	fv := v.Lookup(c.Field)
	if !fv.Exists() {
		return false
	}
	s := fv.String()
	switch c.Mode {
	case model.ModeEquals:
		return s == c.Value
	case model.ModeContains:
		return strings.Contains(s, c.Value)
	default:
		// 未识别的模式一律放行
		return true
	}
}

// Stats 生成筛选统计文案，无生效条件时返回空串
func Stats(filtered, total int, active bool) string {
	if !active {
		return ""
	}
	if filtered == total {
		return fmt.Sprintf("显示全部 %d 条消息", total)
	}
	return fmt.Sprintf("显示 %d/%d 条消息", filtered, total)
}
