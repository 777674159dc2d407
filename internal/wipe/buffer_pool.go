package wipe

import (
	"crypto/rand"
	"sync"

	cerr "github.com/cockroachdb/errors"
)

// BufferPool управляет пулом буферов для оптимизации памяти
type BufferPool struct {
	pools map[int]*sync.Pool
	mu    sync.RWMutex
}

var globalBufferPool = &BufferPool{
	pools: make(map[int]*sync.Pool),
}

// GetBuffer получает буфер из пула или создает новый
func GetBuffer(size int) []byte {
	if size <= 0 {
		return nil
	}

	return globalBufferPool.getBuffer(size)
}

// PutBuffer возвращает буфер в пул
func PutBuffer(buf []byte) {
	if cap(buf) == 0 {
		return
	}

	globalBufferPool.putBuffer(buf)
}

func (bp *BufferPool) getBuffer(size int) []byte {
	poolSize := bp.getPoolSize(size)

	bp.mu.RLock()
	pool, exists := bp.pools[poolSize]
	bp.mu.RUnlock()

	if !exists {
		bp.mu.Lock()
		// Double-check
		pool, exists = bp.pools[poolSize]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return make([]byte, poolSize)
				},
			}
			bp.pools[poolSize] = pool
		}
		bp.mu.Unlock()
	}

	buf := pool.Get().([]byte)
	return buf[:size]
}

func (bp *BufferPool) putBuffer(buf []byte) {
	capacity := cap(buf)
	poolSize := bp.getPoolSize(capacity)
	if poolSize != capacity {
		// чужой буфер
		return
	}

	bp.mu.RLock()
	pool, exists := bp.pools[poolSize]
	bp.mu.RUnlock()

	if exists {
		// Буфер мог содержать паттерн прохода
		full := buf[:capacity]
		clear(full)
		pool.Put(full)
	}
}

// getPoolSize определяет размер пула для буфера
func (bp *BufferPool) getPoolSize(size int) int {
	sizes := []int{1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216}

	for _, poolSize := range sizes {
		if size <= poolSize {
			return poolSize
		}
	}

	return ((size + 4095) / 4096) * 4096 // Округляем до 4KB
}

// FillBufferPattern заполняет буфер повторяющимся паттерном.
// offset это позиция буфера в потоке, чтобы многобайтный паттерн не рвался между чанками.
func FillBufferPattern(buf []byte, pattern []byte, offset int64) {
	if len(buf) == 0 || len(pattern) == 0 {
		return
	}
	if len(pattern) == 1 {
		for i := range buf {
			buf[i] = pattern[0]
		}
		return
	}
	start := int(offset % int64(len(pattern)))
	for i := range buf {
		buf[i] = pattern[(start+i)%len(pattern)]
	}
}

// FillRandom заполняет буфер криптостойкими случайными данными
func FillRandom(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	if _, err := rand.Read(buf); err != nil {
		return cerr.Wrap(err, "ошибка генерации случайных данных")
	}

	return nil
}
