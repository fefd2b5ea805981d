package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncWriter 异步日志写入器：条目入队后由单个后台协程格式化落盘，
// 调用方不承担 I/O 延迟。队列满时入队阻塞，不丢日志。
type AsyncWriter struct {
	writer    io.Writer
	formatter Formatter
	entryCh   chan *LogEntry
	wg        sync.WaitGroup
	closeOnce sync.Once

	errMu      sync.RWMutex
	errHandler func(error)
}

// NewAsyncWriter 创建异步写入器并启动后台协程
func NewAsyncWriter(writer io.Writer, formatter Formatter, bufferSize int) *AsyncWriter {
	w := &AsyncWriter{
		writer:    writer,
		formatter: formatter,
		entryCh:   make(chan *LogEntry, bufferSize),
	}

	w.wg.Add(1)
	go w.drain()

	return w
}

// WriteLog 条目入队。队列满时阻塞直到后台协程腾出空间。
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.entryCh <- entry
}

// Close 关闭队列并等待积压条目全部落盘，幂等
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.entryCh)
	})
	w.wg.Wait()
	return nil
}

// SetErrorHandler 设置格式化/写入失败的处理函数，默认打到标准错误
func (w *AsyncWriter) SetErrorHandler(handler func(error)) {
	w.errMu.Lock()
	w.errHandler = handler
	w.errMu.Unlock()
}

func (w *AsyncWriter) drain() {
	defer w.wg.Done()
	for entry := range w.entryCh {
		w.writeEntry(entry)
	}
}

// writeEntry 格式化并写入一条日志。Formatter 的输出以换行结尾，
// 这里不再补行。
func (w *AsyncWriter) writeEntry(entry *LogEntry) {
	data, err := w.formatter.Format(entry)
	if err != nil {
		w.reportError(fmt.Errorf("format log entry: %w", err))
		return
	}
	if _, err := w.writer.Write(data); err != nil {
		w.reportError(fmt.Errorf("write log entry: %w", err))
	}
}

func (w *AsyncWriter) reportError(err error) {
	w.errMu.RLock()
	handler := w.errHandler
	w.errMu.RUnlock()
	if handler != nil {
		handler(err)
		return
	}
	fmt.Fprintf(os.Stderr, "AsyncWriter: %v\n", err)
}
