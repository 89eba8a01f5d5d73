package fgethttp

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/fget/internal/utils"
)

// FileAssembler owns the on-disk artifacts of one session: a dot-prefixed temp file
// next to the final path, renamed into place on success and removed otherwise.
type FileAssembler struct {
	FinalPath string
	TempPath  string
}

func NewFileAssembler(finalPath string) *FileAssembler {
	return &FileAssembler{
		FinalPath: finalPath,
		TempPath:  utils.TempName(finalPath),
	}
}

// Preallocate creates the temp file at exactly size bytes so chunks can write at any offset.
func (a *FileAssembler) Preallocate(size int64) error {
	f, err := os.OpenFile(a.TempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return &FilesystemError{Op: "create", Path: a.TempPath, Err: err}
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return &FilesystemError{Op: "truncate", Path: a.TempPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &FilesystemError{Op: "close", Path: a.TempPath, Err: err}
	}
	log.Debug().Str("op", "http/assembler").Str("temp", a.TempPath).Int64("size", size).Msg("Temp file preallocated")
	return nil
}

// OpenAt returns a private write handle positioned at offset.
func (a *FileAssembler) OpenAt(offset int64) (*os.File, error) {
	f, err := os.OpenFile(a.TempPath, os.O_WRONLY, 0)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: a.TempPath, Err: err}
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, &FilesystemError{Op: "seek", Path: a.TempPath, Err: err}
	}
	return f, nil
}

// Commit renames the temp file over the final path in a single rename.
func (a *FileAssembler) Commit() error {
	if err := os.Rename(a.TempPath, a.FinalPath); err != nil {
		return &FilesystemError{Op: "rename", Path: a.FinalPath, Err: err}
	}
	log.Debug().Str("op", "http/assembler").Str("final", a.FinalPath).Msg("Temp file moved into place")
	return nil
}

// Purge removes the temp file. The final path is never touched.
func (a *FileAssembler) Purge() error {
	if err := os.Remove(a.TempPath); err != nil && !os.IsNotExist(err) {
		return &FilesystemError{Op: "remove", Path: a.TempPath, Err: err}
	}
	log.Debug().Str("op", "http/assembler").Str("temp", a.TempPath).Msg("Temp file purged")
	return nil
}
