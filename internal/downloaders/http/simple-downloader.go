package fgethttp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// streamBody writes an already-open whole-body response into the temp file. Used when
// the server ignores ranges; there is one chunk and no retry since nothing can resume.
func (s *Session) streamBody(ctx context.Context, asm *FileAssembler, chunk *Chunk, body io.ReadCloser) error {
	defer body.Close()
	if chunk == nil {
		return nil
	}
	chunk.setStatus(ChunkActive)
	f, err := asm.OpenAt(0)
	if err != nil {
		chunk.setStatus(ChunkFailed)
		return err
	}
	defer f.Close()

	abort := func() { body.Close() }
	if err := s.pump(ctx, f, body, chunk, abort); err != nil {
		if errors.Is(err, ErrCancelled) {
			chunk.setStatus(ChunkPending)
			return err
		}
		chunk.setStatus(ChunkFailed)
		return wrapStreamErr(chunk, err)
	}
	if chunk.Written() != chunk.Len() {
		chunk.setStatus(ChunkFailed)
		return &TransportError{Chunk: chunk.Index, Err: fmt.Errorf("%w: got %d of %d bytes", ErrShortChunk, chunk.Written(), chunk.Len())}
	}
	if err := f.Close(); err != nil {
		chunk.setStatus(ChunkFailed)
		return &FilesystemError{Op: "close", Path: asm.TempPath, Err: err}
	}
	chunk.setStatus(ChunkDone)
	log.Debug().Str("op", "http/simple-downloader").Str("session", s.ID).Int64("bytes", chunk.Written()).Msg("Single stream completed")
	return nil
}

func wrapStreamErr(chunk *Chunk, err error) error {
	var fsErr *FilesystemError
	if errors.As(err, &fsErr) {
		return err
	}
	return &TransportError{Chunk: chunk.Index, Err: err}
}
