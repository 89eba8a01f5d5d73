package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	fgethttp "github.com/tanq16/fget/internal/downloaders/http"
	"github.com/tanq16/fget/internal/output"
	"github.com/tanq16/fget/internal/utils"
)

const pollInterval = 500 * time.Millisecond

// Run downloads jobs with numWorkers engines in parallel and returns the joined errors
// of every failed job. Cancelling ctx cancels all running sessions.
func Run(ctx context.Context, jobs []utils.FgetJob, numWorkers int, fileLog bool) error {
	if fileLog {
		f, err := os.OpenFile(utils.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("error opening log file: %v", err)
		}
		defer f.Close()
		utils.SetLogOutput(f)
	}
	outputMgr := output.NewManager()
	return run(ctx, jobs, numWorkers, outputMgr, pollInterval)
}

func run(ctx context.Context, jobs []utils.FgetJob, numWorkers int, outputMgr *output.Manager, poll time.Duration) error {
	outputMgr.StartDisplay()
	defer outputMgr.StopDisplay()

	jobCh := make(chan utils.FgetJob, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	for range max(1, min(numWorkers, len(jobs))) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if err := processJob(ctx, job, outputMgr, poll); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", job.URL, err))
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func processJob(ctx context.Context, job utils.FgetJob, outputMgr *output.Manager, poll time.Duration) error {
	funcID := outputMgr.RegisterFunction(job.URL)
	if ctx.Err() != nil {
		outputMgr.Cancelled(funcID, fmt.Sprintf("Skipped %s", job.URL))
		return nil
	}
	outputMgr.SetStatus(funcID, "pending")
	outputMgr.SetMessage(funcID, fmt.Sprintf("Probing %s", job.URL))

	engine := newEngine(job)
	if parent := filepath.Dir(job.OutputPath); job.OutputPath != "" && parent != "." {
		target := parent
		if !filepath.IsAbs(parent) {
			target = filepath.Join(engine.Dir, parent)
		}
		if err := os.MkdirAll(target, 0755); err != nil {
			outputMgr.ReportError(funcID, err)
			return err
		}
	}

	type result struct {
		outcome fgethttp.Outcome
		err     error
	}
	resCh := make(chan result, 1)
	err := engine.Get(ctx, fgethttp.Options{URL: job.URL, VersionTag: job.VersionTag}, func(outcome fgethttp.Outcome, err error) {
		resCh <- result{outcome, err}
	})
	if err != nil {
		outputMgr.ReportError(funcID, err)
		return err
	}
	log.Debug().Str("op", "scheduler").Str("job", job.ID).Str("url", job.URL).Msg("Job started")

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			outputMgr.UpdateProgress(funcID, engine.Status())
		case res := <-resCh:
			status := engine.Status()
			switch res.outcome {
			case fgethttp.OutcomeCompleted:
				outputMgr.Complete(funcID, fmt.Sprintf("Downloaded %s (%s)", status.Filename, utils.FormatUnits(float64(status.BytesReceived))))
				return nil
			case fgethttp.OutcomeCancelled:
				outputMgr.Cancelled(funcID, fmt.Sprintf("Cancelled %s", job.URL))
				return nil
			default:
				outputMgr.SetMessage(funcID, fmt.Sprintf("Failed %s", job.URL))
				outputMgr.ReportError(funcID, res.err)
				return res.err
			}
		}
	}
}

func newEngine(job utils.FgetJob) *fgethttp.Engine {
	engine := fgethttp.NewEngine()
	if job.Connections > 0 {
		engine.MaximumConnections = job.Connections
	}
	engine.ChunkCount = job.ChunkCount
	engine.Filename = job.OutputPath
	if job.Dir != "" {
		engine.Dir = job.Dir
	}
	engine.Retries = job.Retries
	engine.RateLimit = job.RateLimit
	engine.HTTPClientConfig = job.HTTPClientConfig
	return engine
}
