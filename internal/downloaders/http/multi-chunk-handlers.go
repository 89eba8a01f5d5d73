package fgethttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/fget/internal/utils"
)

// runChunk downloads one chunk, retrying up to s.retries times from the first
// missing byte. Cancellation and filesystem errors are never retried.
func (s *Session) runChunk(ctx context.Context, asm *FileAssembler, chunk *Chunk) error {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			log.Warn().Str("op", "http/chunk-worker").Int("chunk", chunk.Index).Err(lastErr).Msgf("Retrying chunk (attempt %d/%d)", attempt+1, s.retries+1)
			select {
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
			case <-s.cancelCh:
				chunk.setStatus(ChunkPending)
				return ErrCancelled
			}
		}
		err := s.downloadChunk(ctx, asm, chunk)
		if err == nil {
			chunk.setStatus(ChunkDone)
			log.Debug().Str("op", "http/chunk-worker").Int("chunk", chunk.Index).Int64("bytes", chunk.Written()).Msg("Chunk completed")
			return nil
		}
		if errors.Is(err, ErrCancelled) {
			chunk.setStatus(ChunkPending)
			return err
		}
		lastErr = err
		var fsErr *FilesystemError
		if errors.As(err, &fsErr) {
			break
		}
	}
	chunk.setStatus(ChunkFailed)
	var fsErr *FilesystemError
	if errors.As(lastErr, &fsErr) {
		return lastErr
	}
	return &TransportError{Chunk: chunk.Index, Err: lastErr}
}

func (s *Session) downloadChunk(ctx context.Context, asm *FileAssembler, chunk *Chunk) error {
	if s.Cancelled() {
		return ErrCancelled
	}
	offset := chunk.Start + chunk.Written()
	if offset > chunk.End {
		return nil
	}
	reqCtx, abort := context.WithCancel(ctx)
	defer abort()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.URL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, chunk.End))
	resp, err := s.client.Do(req)
	if err != nil {
		if s.Cancelled() {
			return ErrCancelled
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		if resp.StatusCode == http.StatusOK {
			return ErrRangeIgnored
		}
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	start, _, _, err := ParseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRangeMismatch, err)
	}
	if start != offset {
		return fmt.Errorf("%w: asked for offset %d, server sent %d", ErrRangeMismatch, offset, start)
	}

	f, err := asm.OpenAt(offset)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.pump(reqCtx, f, resp.Body, chunk, abort); err != nil {
		return err
	}
	if chunk.Written() != chunk.Len() {
		return fmt.Errorf("%w: got %d of %d bytes", ErrShortChunk, chunk.Written(), chunk.Len())
	}
	if err := f.Close(); err != nil {
		return &FilesystemError{Op: "close", Path: asm.TempPath, Err: err}
	}
	return nil
}

// pump copies fragments from src to dst, crediting each to chunk. The cancel flag is
// checked once per received fragment and again after any limiter wait; when set, abort
// tears down the request and nothing more is written.
func (s *Session) pump(ctx context.Context, dst io.Writer, src io.Reader, chunk *Chunk, abort func()) error {
	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		bytesRead, readErr := src.Read(buffer)
		if bytesRead > 0 {
			if s.Cancelled() {
				abort()
				log.Debug().Str("op", "http/chunk-worker").Int("chunk", chunk.Index).Msg("Aborting chunk")
				return ErrCancelled
			}
			n := int64(bytesRead)
			remaining := chunk.Len() - chunk.Written()
			overflow := n > remaining
			if overflow {
				n = remaining
			}
			if s.limiter != nil && n > 0 {
				if err := s.limiter.WaitN(ctx, int(n)); err != nil {
					if s.Cancelled() {
						abort()
						return ErrCancelled
					}
					return fmt.Errorf("rate limiter: %w", err)
				}
				if s.Cancelled() {
					abort()
					return ErrCancelled
				}
			}
			if _, err := dst.Write(buffer[:n]); err != nil {
				return &FilesystemError{Op: "write", Path: chunkTarget(dst), Err: err}
			}
			s.addBytes(chunk, n)
			if overflow {
				return ErrOverflow
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			if s.Cancelled() {
				return ErrCancelled
			}
			return fmt.Errorf("error reading response body: %w", readErr)
		}
	}
}

func chunkTarget(w io.Writer) string {
	if named, ok := w.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "temp file"
}
