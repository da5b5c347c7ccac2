// Package payload 将消息文本解码为带类型标签的 JSON 值，并提供路径解析与字符串化规则。
package payload

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Kind JSON 值的类型标签
type Kind int

const (
	Absent Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

// Value 解码后的 JSON 值
type Value struct {
	res  gjson.Result
	kind Kind
}

// Decode 尝试将文本解码为 JSON，失败时 ok 为 false
func Decode(data string) (Value, bool) {
	if !gjson.Valid(data) {
		return Value{}, false
	}
	return wrap(gjson.Parse(data)), true
}

func wrap(r gjson.Result) Value {
	v := Value{res: r}
	switch r.Type {
	case gjson.Null:
		if r.Exists() {
			v.kind = Null
		}
	case gjson.False, gjson.True:
		v.kind = Bool
	case gjson.Number:
		v.kind = Number
	case gjson.String:
		v.kind = String
	case gjson.JSON:
		if r.IsArray() {
			v.kind = Array
		} else {
			v.kind = Object
		}
	}
	return v
}

// Kind 返回类型标签
func (v Value) Kind() Kind { return v.kind }

// Exists 值是否存在（JSON null 视为存在）
func (v Value) Exists() bool { return v.kind != Absent }

// IsObject 是否为对象
func (v Value) IsObject() bool { return v.kind == Object }

// IsArray 是否为数组
func (v Value) IsArray() bool { return v.kind == Array }

// Raw 返回原始 JSON 文本
func (v Value) Raw() string { return v.res.Raw }

// Each 按文档顺序遍历对象的键值对，返回 false 时停止
func (v Value) Each(fn func(key string, val Value) bool) {
	if v.kind != Object {
		return
	}
	v.res.ForEach(func(k, val gjson.Result) bool {
		return fn(k.Str, wrap(val))
	})
}

// First 返回数组首元素，空数组或非数组返回不存在的值
func (v Value) First() Value {
	if v.kind != Array {
		return Value{}
	}
	var first Value
	v.res.ForEach(func(_, val gjson.Result) bool {
		first = wrap(val)
		return false
	})
	return first
}

// Key 按键取对象成员，重复键时以最后一个为准
func (v Value) Key(name string) Value {
	if v.kind != Object {
		return Value{}
	}
	var found Value
	v.res.ForEach(func(k, val gjson.Result) bool {
		if k.Str == name {
			found = wrap(val)
		}
		return true
	})
	return found
}

// Index 按下标取数组元素
func (v Value) Index(i int) Value {
	if v.kind != Array || i < 0 {
		return Value{}
	}
	var found Value
	n := 0
	v.res.ForEach(func(_, val gjson.Result) bool {
		if n == i {
			found = wrap(val)
			return false
		}
		n++
		return true
	})
	return found
}

// Lookup 按点分路径逐级解析，中间值为 null 或不存在时返回不存在
func (v Value) Lookup(path string) Value {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch cur.kind {
		case Object:
			cur = cur.Key(seg)
		case Array:
			idx, ok := toIndex(seg)
			if !ok {
				return Value{}
			}
			cur = cur.Index(idx)
		default:
			return Value{}
		}
	}
	return cur
}

// String 统一的字符串化规则
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		if v.res.Bool() {
			return "true"
		}
		return "false"
	case Number:
		return FormatNumber(v.res.Num)
	case String:
		return v.res.Str
	case Array, Object:
		return string(pretty.Ugly([]byte(v.res.Raw)))
	default:
		return ""
	}
}

// Pretty 返回缩进格式的 JSON 文本
func (v Value) Pretty() string {
	if !v.Exists() {
		return ""
	}
	// Width 为 0 时数组元素总是逐行展开
	out := pretty.PrettyOptions([]byte(v.res.Raw), &pretty.Options{Indent: "  ", Width: 0, SortKeys: false})
	return strings.TrimRight(string(out), "\n")
}

// FormatNumber 以 ECMAScript Number#toString 的规范形式输出数字
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toIndex(s string) (int, bool) {
	n := 0
	if len(s) == 0 || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		if n > math.MaxInt32 {
			return 0, false
		}
	}
	return n, true
}
