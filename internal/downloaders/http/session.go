package fgethttp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tanq16/fget/internal/utils"
)

type State int32

const (
	StateIdle State = iota
	StateProbing
	StatePlanning
	StateDownloading
	StateFinalizing
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StatePlanning:
		return "planning"
	case StateDownloading:
		return "downloading"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateIdle || s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Session holds everything one Get call owns. Nothing here outlives the call.
type Session struct {
	ID               string
	URL              string
	dir              string
	filenameOverride string
	maxConnections   int
	chunkCount       int
	retries          int

	client  utils.HTTPDoer
	limiter *rate.Limiter

	state          atomic.Int32
	filename       atomic.Pointer[string]
	totalSize      atomic.Int64
	supportsRanges atomic.Bool
	bytesReceived  atomic.Int64

	cancelRequested atomic.Bool
	cancelOnce      sync.Once
	cancelCh        chan struct{}
	ctx             context.Context // cancelled together with cancelCh
	stop            context.CancelFunc
	done            chan struct{}

	mu           sync.Mutex // guards chunks, startTime and the smoothing state
	chunks       []*Chunk
	startTime    time.Time
	lastRate     float64
	smoothedRate float64
}

type sessionConfig struct {
	dir              string
	filenameOverride string
	maxConnections   int
	chunkCount       int
	retries          int
	rateLimit        int64
}

func newSession(id, url string, cfg sessionConfig, client utils.HTTPDoer) *Session {
	s := &Session{
		ID:               id,
		URL:              url,
		dir:              cfg.dir,
		filenameOverride: cfg.filenameOverride,
		maxConnections:   cfg.maxConnections,
		chunkCount:       cfg.chunkCount,
		retries:          cfg.retries,
		client:           client,
		cancelCh:         make(chan struct{}),
		done:             make(chan struct{}),
	}
	if cfg.rateLimit > 0 {
		burst := max(int(cfg.rateLimit), utils.DefaultBufferSize)
		s.limiter = rate.NewLimiter(rate.Limit(cfg.rateLimit), burst)
	}
	s.ctx, s.stop = context.WithCancel(context.Background())
	s.totalSize.Store(-1)
	s.setState(StateProbing)
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	if prev != state {
		log.Debug().Str("op", "http/session").Str("session", s.ID).Str("from", prev.String()).Str("to", state.String()).Msg("State change")
	}
}

func (s *Session) Filename() string {
	if p := s.filename.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Session) BytesReceived() int64 {
	return s.bytesReceived.Load()
}

func (s *Session) Cancelled() bool {
	return s.cancelRequested.Load()
}

// requestCancel flags the session and tears down its context, so in-flight requests
// and limiter waits return at once.
func (s *Session) requestCancel() {
	s.cancelOnce.Do(func() {
		s.cancelRequested.Store(true)
		close(s.cancelCh)
		s.stop()
		log.Debug().Str("op", "http/session").Str("session", s.ID).Msg("Cancellation requested")
	})
}

func (s *Session) setChunks(chunks []*Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = chunks
}

func (s *Session) markStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = time.Now()
}

// addBytes credits a written fragment to the chunk and the session together.
func (s *Session) addBytes(chunk *Chunk, n int64) {
	chunk.written.Add(n)
	s.bytesReceived.Add(n)
}
