package audio

import (
	"encoding/binary"
	"sync/atomic"
)

// RingBuffer is a lock-free single producer, single consumer queue of PCM samples.
// One slot is always left empty to tell a full ring from an empty one.
// reference: https://en.wikipedia.org/wiki/Circular_buffer
type RingBuffer struct {
	buffer []int16
	size   int64

	writeIdx,
	readIdx atomic.Int64
}

// NewRingBuffer holds up to size-1 samples
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]int16, size),
		size:   int64(size),
	}
}

// Len returns the number of buffered samples
func (rb *RingBuffer) Len() int {
	writeIdx := rb.writeIdx.Load()
	readIdx := rb.readIdx.Load()
	if writeIdx < readIdx {
		return int(rb.size - readIdx + writeIdx) // go around the ring
	}
	return int(writeIdx - readIdx)
}

// Write copies samples from src until the ring is full and returns how many were taken.
// Safe for a single producer.
func (rb *RingBuffer) Write(src []int16) int {
	written := 0
	for _, s := range src {
		writeIdx := rb.writeIdx.Load()
		nextWriteIdx := (writeIdx + 1) % rb.size
		if nextWriteIdx == rb.readIdx.Load() {
			break // full
		}

		rb.buffer[writeIdx] = s
		rb.writeIdx.Store(nextWriteIdx) // publish write
		written++
	}
	return written
}

// Read drains buffered samples into dst as little-endian int16, stopping when dst is full or
// the ring is empty. Returns the number of samples read. Safe for a single consumer.
func (rb *RingBuffer) Read(dst []byte) int {
	want := min(rb.Len(), len(dst)/2)

	read := 0
	for i := range want {
		readIdx := rb.readIdx.Load()
		if readIdx == rb.writeIdx.Load() {
			break // empty
		}

		binary.LittleEndian.PutUint16(dst[i*2:], uint16(rb.buffer[readIdx]))
		rb.readIdx.Store((readIdx + 1) % rb.size)
		read++
	}
	return read
}
