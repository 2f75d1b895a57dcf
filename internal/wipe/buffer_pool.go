package wipe

import (
	"sync"
)

// BufferPool хранит буферы чанков по классам размера
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
	poolSize := poolSizeFor(size)

	bp.mu.RLock()
	pool, exists := bp.pools[poolSize]
	bp.mu.RUnlock()

	if !exists {
		bp.mu.Lock()
		pool, exists = bp.pools[poolSize]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					b := make([]byte, poolSize)
					return &b
				},
			}
			bp.pools[poolSize] = pool
		}
		bp.mu.Unlock()
	}

	buf := *(pool.Get().(*[]byte))
	return buf[:size]
}

func (bp *BufferPool) putBuffer(buf []byte) {
	capacity := cap(buf)
	if poolSizeFor(capacity) != capacity {
		// чужой буфер, в пул не кладём
		return
	}

	bp.mu.RLock()
	pool, exists := bp.pools[capacity]
	bp.mu.RUnlock()

	if exists {
		buf = buf[:capacity]
		pool.Put(&buf)
	}
}

// poolSizeFor округляет размер до класса пула: степени двойки до 64MB, дальше кратно 4KB
func poolSizeFor(size int) int {
	sizes := []int{4096, 65536, 262144, 1048576, 4194304, 16777216, 67108864}
	for _, poolSize := range sizes {
		if size <= poolSize {
			return poolSize
		}
	}
	return ((size + 4095) / 4096) * 4096
}
