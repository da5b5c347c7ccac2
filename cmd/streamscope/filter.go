package main

import (
	"fmt"
	"strings"

	"streamscope/pkg/model"
)

// parseFilters 解析 --filter 参数：field=value 为等于，field~value 为包含
func parseFilters(raw []string) ([]model.FilterCondition, error) {
	conds := make([]model.FilterCondition, 0, len(raw))
	for _, r := range raw {
		i := strings.IndexAny(r, "=~")
		if i <= 0 {
			return nil, fmt.Errorf("invalid filter %q: want field=value or field~value", r)
		}
		mode := model.ModeEquals
		if r[i] == '~' {
			mode = model.ModeContains
		}
		conds = append(conds, model.FilterCondition{
			Field: strings.TrimSpace(r[:i]),
			Mode:  mode,
			Value: r[i+1:],
		})
	}
	return conds, nil
}
