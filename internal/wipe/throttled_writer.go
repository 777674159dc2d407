package wipe

import (
	"context"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// ThrottledWriter ограничивает скорость записи (thread-safe)
type ThrottledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
	mu      sync.Mutex
	closed  bool
}

// NewThrottledWriter создает writer с лимитом maxSpeedMBps (0 без лимита).
// burst это максимальный размер одного Write.
func NewThrottledWriter(ctx context.Context, w io.Writer, maxSpeedMBps float64, burst int) *ThrottledWriter {
	tw := &ThrottledWriter{w: w, ctx: ctx}
	if maxSpeedMBps > 0 {
		if burst <= 0 {
			burst = 1024 * 1024
		}
		tw.limiter = rate.NewLimiter(rate.Limit(maxSpeedMBps*1024*1024), burst)
	}
	return tw
}

// Write записывает данные с ограничением скорости
func (tw *ThrottledWriter) Write(data []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return 0, io.ErrClosedPipe
	}
	if len(data) == 0 {
		return 0, nil
	}

	written := 0
	for written < len(data) {
		chunk := data[written:]
		if tw.limiter != nil {
			if b := tw.limiter.Burst(); len(chunk) > b {
				chunk = chunk[:b]
			}
			if err := tw.limiter.WaitN(tw.ctx, len(chunk)); err != nil {
				return written, err
			}
		}
		n, err := tw.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Sync синхронизирует данные на диск, если writer это поддерживает
func (tw *ThrottledWriter) Sync() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return io.ErrClosedPipe
	}
	if s, ok := tw.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Close закрывает нижележащий writer
func (tw *ThrottledWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	if c, ok := tw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
