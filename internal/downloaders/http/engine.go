package fgethttp

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/fget/internal/utils"
)

const DefaultMaximumConnections = 10

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Callback receives the terminal outcome of a session exactly once. err is non-nil
// only with OutcomeFailed.
type Callback func(outcome Outcome, err error)

// Options describe one download. They are copied when Get is called.
type Options struct {
	URL         string
	Credentials string // "user:password", sent as basic auth
	Token       string // bearer token
	VersionTag  string
	Headers     map[string]string
}

// Engine runs one download session at a time. The exported fields are read when Get
// is called; changing them affects the next session only.
type Engine struct {
	MaximumConnections int
	ChunkCount         int // 0 means MaximumConnections
	Filename           string
	Dir                string
	Retries            int
	RateLimit          int64 // bytes per second, 0 for unlimited
	HTTPClientConfig   utils.HTTPClientConfig

	mu      sync.Mutex
	session *Session
}

func NewEngine() *Engine {
	return &Engine{
		MaximumConnections: DefaultMaximumConnections,
		Dir:                ".",
	}
}

// Get starts a download in the background and returns immediately. A nil callback or
// an engine that is still busy fails synchronously; everything else, including a
// missing URL, is reported through cb.
func (e *Engine) Get(ctx context.Context, opts Options, cb Callback) error {
	if cb == nil {
		return &UsageError{Err: ErrNoCallback}
	}
	if opts.URL == "" {
		go cb(OutcomeFailed, &UsageError{Err: ErrNoURL})
		return nil
	}

	e.mu.Lock()
	if e.session != nil && !e.session.State().Terminal() {
		e.mu.Unlock()
		return &UsageError{Err: ErrSessionActive}
	}
	clientConfig, err := e.clientConfig(opts)
	if err != nil {
		e.mu.Unlock()
		go cb(OutcomeFailed, &UsageError{Err: err})
		return nil
	}
	maxConnections := e.MaximumConnections
	if maxConnections <= 0 {
		maxConnections = DefaultMaximumConnections
	}
	chunkCount := e.ChunkCount
	if chunkCount <= 0 {
		chunkCount = maxConnections
	}
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	cfg := sessionConfig{
		dir:              dir,
		filenameOverride: e.Filename,
		maxConnections:   maxConnections,
		chunkCount:       chunkCount,
		retries:          max(e.Retries, 0),
		rateLimit:        e.RateLimit,
	}
	clientConfig.HighThreadMode = maxConnections > 5
	client := utils.NewFgetHTTPClient(clientConfig)
	session := newSession(uuid.NewString(), opts.URL, cfg, client)
	e.session = session
	e.mu.Unlock()

	log.Debug().Str("op", "http/engine").Str("session", session.ID).Str("url", opts.URL).Int("connections", maxConnections).Msg("Session started")

	var once sync.Once
	finish := func(outcome Outcome, err error) {
		once.Do(func() {
			client.CloseIdleConnections()
			cb(outcome, err)
			close(session.done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			session.requestCancel()
		case <-session.done:
		}
	}()
	go func() {
		outcome, err := session.run()
		finish(outcome, err)
	}()
	return nil
}

// Download is the blocking form of Get.
func (e *Engine) Download(ctx context.Context, opts Options) (Outcome, error) {
	type result struct {
		outcome Outcome
		err     error
	}
	resCh := make(chan result, 1)
	if err := e.Get(ctx, opts, func(outcome Outcome, err error) {
		resCh <- result{outcome, err}
	}); err != nil {
		return OutcomeFailed, err
	}
	res := <-resCh
	return res.outcome, res.err
}

// Cancel flags the current session and returns without waiting for workers.
func (e *Engine) Cancel() {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session != nil {
		session.requestCancel()
	}
}

// Status never blocks on I/O and is safe to call before any session exists.
func (e *Engine) Status() Status {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session == nil {
		return idleStatus()
	}
	return session.Sample()
}

func (e *Engine) clientConfig(opts Options) (utils.HTTPClientConfig, error) {
	cfg := e.HTTPClientConfig
	cfg.Headers = maps.Clone(cfg.Headers)
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	maps.Copy(cfg.Headers, opts.Headers)
	if cfg.UserAgent == "" {
		cfg.UserAgent = utils.BuildUserAgent(opts.VersionTag)
	}
	if opts.Credentials != "" {
		user, pass, err := utils.ParseCredentials(opts.Credentials)
		if err != nil {
			return cfg, err
		}
		cfg.Username, cfg.Password = user, pass
	}
	if opts.Token != "" {
		cfg.Token = opts.Token
	}
	return cfg, nil
}

// run walks the session through probe, plan, transfer and finalize, and guarantees
// the temp file is gone on every non-success path.
func (s *Session) run() (Outcome, error) {
	ctx := s.ctx
	probe, err := Probe(ctx, s.client, s.URL, s.filenameOverride)
	if err != nil {
		if s.Cancelled() {
			s.setState(StateCancelled)
			return OutcomeCancelled, nil
		}
		s.setState(StateFailed)
		log.Error().Str("op", "http/engine").Str("session", s.ID).Err(err).Msg("Probe failed")
		return OutcomeFailed, err
	}
	finalPath := probe.Filename
	if !filepath.IsAbs(finalPath) {
		finalPath = filepath.Join(s.dir, finalPath)
	}
	s.filename.Store(&finalPath)
	s.totalSize.Store(probe.TotalSize)
	s.supportsRanges.Store(probe.SupportsRanges)
	if s.Cancelled() {
		if probe.Body != nil {
			probe.Body.Close()
		}
		s.setState(StateCancelled)
		return OutcomeCancelled, nil
	}

	s.setState(StatePlanning)
	var chunks []*Chunk
	if probe.SupportsRanges {
		chunks = Plan(probe.TotalSize, s.chunkCount, s.maxConnections)
	} else {
		chunks = Plan(probe.TotalSize, 1, 1)
	}
	s.setChunks(chunks)

	asm := NewFileAssembler(finalPath)
	s.setState(StateDownloading)
	if err := asm.Preallocate(probe.TotalSize); err != nil {
		if probe.Body != nil {
			probe.Body.Close()
		}
		return s.fail(asm, err)
	}
	s.markStart()
	if probe.SupportsRanges {
		err = s.runAll(ctx, asm, chunks, s.maxConnections)
	} else {
		var chunk *Chunk
		if len(chunks) > 0 {
			chunk = chunks[0]
		}
		err = s.streamBody(ctx, asm, chunk, probe.Body)
	}
	if err != nil {
		return s.fail(asm, err)
	}

	s.setState(StateFinalizing)
	if s.Cancelled() {
		return s.fail(asm, ErrCancelled)
	}
	if err := asm.Commit(); err != nil {
		return s.fail(asm, err)
	}
	s.setState(StateCompleted)
	log.Info().Str("op", "http/engine").Str("session", s.ID).Str("file", finalPath).Int64("bytes", s.BytesReceived()).Msg("Download completed")
	return OutcomeCompleted, nil
}

func (s *Session) fail(asm *FileAssembler, err error) (Outcome, error) {
	if purgeErr := asm.Purge(); purgeErr != nil {
		log.Error().Str("op", "http/engine").Str("session", s.ID).Err(purgeErr).Msg("Failed to purge temp file")
	}
	if errors.Is(err, ErrCancelled) {
		s.setState(StateCancelled)
		log.Info().Str("op", "http/engine").Str("session", s.ID).Msg("Download cancelled")
		return OutcomeCancelled, nil
	}
	s.setState(StateFailed)
	log.Error().Str("op", "http/engine").Str("session", s.ID).Err(err).Msg("Download failed")
	return OutcomeFailed, err
}
