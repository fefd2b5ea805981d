package logging

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// JsonFormatter 单行 JSON 格式化器
// 键序固定：time、level、category、msg，随后字段按登记顺序进入
// fields 对象，日志采集侧可以按列做索引
type JsonFormatter struct {
	TimestampFormat string
}

// NewJsonFormatter 创建 JSON 格式化器
func NewJsonFormatter() *JsonFormatter {
	return &JsonFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// Format 输出以换行结尾的单行 JSON
func (f *JsonFormatter) Format(entry *LogEntry) ([]byte, error) {
	buf := GlobalBufferPool.Get()

	buf.WriteString(`{"time":`)
	buf.WriteString(strconv.Quote(entry.Time.Format(f.TimestampFormat)))
	buf.WriteString(`,"level":`)
	buf.WriteString(strconv.Quote(entry.Level.String()))
	if entry.Category != "" {
		buf.WriteString(`,"category":`)
		buf.WriteString(strconv.Quote(entry.Category))
	}
	buf.WriteString(`,"msg":`)
	buf.WriteString(strconv.Quote(entry.Message))

	if len(entry.Fields) > 0 {
		buf.WriteString(`,"fields":{`)
		for i, field := range entry.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(field.Key))
			buf.WriteByte(':')
			val, err := json.Marshal(field.Value)
			if err != nil {
				// 不可序列化的值退化为字符串表示
				val = []byte(strconv.Quote(fmt.Sprintf("%v", field.Value)))
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteString("}\n")

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	GlobalBufferPool.Put(buf)
	return result, nil
}
