package fgethttp

import "sync/atomic"

type ChunkStatus int32

const (
	ChunkPending ChunkStatus = iota
	ChunkActive
	ChunkDone
	ChunkFailed
)

func (c ChunkStatus) String() string {
	switch c {
	case ChunkPending:
		return "pending"
	case ChunkActive:
		return "active"
	case ChunkDone:
		return "done"
	case ChunkFailed:
		return "failed"
	}
	return "unknown"
}

// Chunk is one inclusive byte range [Start, End] of the target file.
type Chunk struct {
	Index int
	Start int64
	End   int64

	written atomic.Int64
	status  atomic.Int32
}

func (c *Chunk) Len() int64 {
	return c.End - c.Start + 1
}

func (c *Chunk) Written() int64 {
	return c.written.Load()
}

func (c *Chunk) Status() ChunkStatus {
	return ChunkStatus(c.status.Load())
}

func (c *Chunk) setStatus(status ChunkStatus) {
	c.status.Store(int32(status))
}

// Plan splits totalSize bytes into at most min(chunkCount, maxConnections, totalSize)
// contiguous chunks of ceil(totalSize/n) bytes; the last one may be shorter.
func Plan(totalSize int64, chunkCount, maxConnections int) []*Chunk {
	if totalSize <= 0 {
		return nil
	}
	n := int64(max(1, min(chunkCount, maxConnections)))
	n = min(n, totalSize)
	chunkSize := (totalSize + n - 1) / n
	chunks := make([]*Chunk, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * chunkSize
		if start >= totalSize {
			break
		}
		end := min((i+1)*chunkSize-1, totalSize-1)
		chunks = append(chunks, &Chunk{Index: int(i), Start: start, End: end})
	}
	return chunks
}
