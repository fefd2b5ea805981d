package logging

// NewNopLogger 返回丢弃所有输出的 Logger。未显式配置日志的组件用它
// 作为默认值。
func NewNopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Trace(string, ...Field)          {}
func (nopLogger) Debug(string, ...Field)          {}
func (nopLogger) Info(string, ...Field)           {}
func (nopLogger) Warn(string, ...Field)           {}
func (nopLogger) Error(string, ...Field)          {}
func (nopLogger) Fatal(string, ...Field)          {}
func (nopLogger) Log(LogLevel, string, ...Field)  {}
func (n nopLogger) WithFields(...Field) Logger    { return n }
func (n nopLogger) WithCategory(string) Logger    { return n }
