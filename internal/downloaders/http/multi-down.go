package fgethttp

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

type chunkResult struct {
	chunk *Chunk
	err   error
}

// runAll drives chunks through a sliding window of maxConcurrent workers, last chunk
// first. A freed slot is refilled at once; the first failure cancels the whole session.
// It returns after every dispatched worker has reported back.
func (s *Session) runAll(ctx context.Context, asm *FileAssembler, chunks []*Chunk, maxConcurrent int) error {
	if len(chunks) == 0 {
		return nil
	}
	maxConcurrent = max(1, min(maxConcurrent, len(chunks)))
	results := make(chan chunkResult, len(chunks))
	next := len(chunks) - 1
	active, completed := 0, 0

	dispatch := func() {
		chunk := chunks[next]
		next--
		active++
		chunk.setStatus(ChunkActive)
		go func() {
			results <- chunkResult{chunk: chunk, err: s.runChunk(ctx, asm, chunk)}
		}()
	}
	for active < maxConcurrent && next >= 0 {
		dispatch()
	}

	var firstErr error
	for active > 0 {
		res := <-results
		active--
		completed++
		if res.err != nil && !errors.Is(res.err, ErrCancelled) {
			log.Error().Str("op", "http/scheduler").Str("session", s.ID).Int("chunk", res.chunk.Index).Err(res.err).Msg("Chunk failed")
			if !s.Cancelled() {
				firstErr = res.err
				s.requestCancel()
			}
		}
		log.Debug().Str("op", "http/scheduler").Str("session", s.ID).Msgf("Chunk completed %d of %d", completed, len(chunks))
		if !s.Cancelled() && next >= 0 {
			dispatch()
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if s.Cancelled() {
		return ErrCancelled
	}
	return nil
}
