package wipe

import (
	"context"
	"io"

	cerr "github.com/cockroachdb/errors"
)

// WriteOptions параметры записи одного прохода
type WriteOptions struct {
	ChunkSize    int
	MaxSpeedMBps float64
}

// WritePattern пишет size байт паттерна в w порциями ChunkSize.
// Возвращает число записанных байт.
func WritePattern(ctx context.Context, w io.Writer, pattern Pattern, size int64, opts WriteOptions) (int64, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1024 * 1024 // 1MB fallback
	}
	if !pattern.Random && len(pattern.Bytes) == 0 {
		return 0, cerr.New("пустой паттерн")
	}

	tw := NewThrottledWriter(ctx, w, opts.MaxSpeedMBps, chunkSize)

	buf := GetBuffer(chunkSize)
	defer PutBuffer(buf)

	var written int64
	for written < size {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		toWrite := int64(chunkSize)
		if remaining := size - written; remaining < toWrite {
			toWrite = remaining
		}

		b := buf[:toWrite]
		if pattern.Random {
			if err := FillRandom(b); err != nil {
				return written, err
			}
		} else {
			FillBufferPattern(b, pattern.Bytes, written)
		}

		n, err := tw.Write(b)
		written += int64(n)
		if err != nil {
			return written, cerr.Wrap(err, "ошибка записи")
		}
	}

	if err := tw.Sync(); err != nil {
		return written, cerr.Wrap(err, "ошибка синхронизации")
	}
	return written, nil
}
