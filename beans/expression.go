package beans

// ExpressionResolver 文本值的表达式求值协作方。解析器在所有可能是
// 表达式的字符串上统一调用它；默认实现原样返回。
//
// config 包提供基于配置占位符（${key} / ${key:default}）的实现。
type ExpressionResolver interface {
	Evaluate(raw string) (any, error)
}

// noopExpressionResolver 默认求值器：任何字符串都不是表达式。
type noopExpressionResolver struct{}

func (noopExpressionResolver) Evaluate(raw string) (any, error) { return raw, nil }
