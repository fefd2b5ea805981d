package config

import (
	"fmt"
	"strings"

	"github.com/gocrud/ioc/beans"
)

// PlaceholderResolver 基于配置的占位符求值器
// 将字符串中的 ${key} 与 ${key:default} 替换为配置值。
// 不含占位符的字符串原样返回。
//
// 使用示例:
//
//	resolver := config.NewPlaceholderResolver(cfg)
//	beans.WithExpressionResolver(resolver)
type PlaceholderResolver struct {
	configuration Configuration
}

var _ beans.ExpressionResolver = (*PlaceholderResolver)(nil)

// NewPlaceholderResolver 创建占位符求值器
func NewPlaceholderResolver(cfg Configuration) *PlaceholderResolver {
	return &PlaceholderResolver{configuration: cfg}
}

// Evaluate 求值字符串中的所有占位符
// 配置中不存在且没有默认值的键会返回错误。
func (r *PlaceholderResolver) Evaluate(raw string) (any, error) {
	if !strings.Contains(raw, "${") {
		return raw, nil
	}

	var sb strings.Builder
	rest := raw
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			// 未闭合的占位符按普通文本处理
			sb.WriteString(rest)
			break
		}
		end += start

		sb.WriteString(rest[:start])
		resolved, err := r.resolveKey(rest[start+2 : end])
		if err != nil {
			return nil, err
		}
		sb.WriteString(resolved)
		rest = rest[end+1:]
	}
	return sb.String(), nil
}

// resolveKey 解析单个占位符内容，支持 key:default 形式
func (r *PlaceholderResolver) resolveKey(expr string) (string, error) {
	key := expr
	defaultValue := ""
	hasDefault := false
	if idx := strings.Index(expr, ":"); idx >= 0 {
		key = expr[:idx]
		defaultValue = expr[idx+1:]
		hasDefault = true
	}

	value := r.configuration.Get(key)
	if value == "" {
		if hasDefault {
			return defaultValue, nil
		}
		return "", fmt.Errorf("config: unresolved placeholder %q", key)
	}
	return value, nil
}
