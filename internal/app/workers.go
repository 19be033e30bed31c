package app

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/telecare/consult/internal/domain"
)

// Job is one analyzer invocation. It must respect ctx: the pool
// cancels it after the configured timeout.
type Job func(ctx context.Context)

// JobRunner is what the signal adapter schedules analyzer work on.
type JobRunner interface {
	Submit(session domain.SessionID, run Job) bool
}

// AnalysisPool runs analyzer calls off the transport goroutines.
// Jobs for one session always land on the same worker, so a session's
// frames and audio chunks are processed in arrival order; different
// sessions spread across workers and run in parallel.
type AnalysisPool struct {
	queues  []chan poolJob
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

type poolJob struct {
	session domain.SessionID
	run     Job
}

func NewAnalysisPool(workers, queueDepth int, timeout time.Duration) *AnalysisPool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	p := &AnalysisPool{
		queues:  make([]chan poolJob, workers),
		timeout: timeout,
	}
	for i := range p.queues {
		p.queues[i] = make(chan poolJob, queueDepth)
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit never blocks: when the session's queue is full the job is
// dropped and logged, matching the drop-not-crash contract for
// analyzer failures.
func (p *AnalysisPool) Submit(session domain.SessionID, run Job) bool {
	h := fnv.New32a()
	h.Write([]byte(session))
	q := p.queues[h.Sum32()%uint32(len(p.queues))]
	select {
	case q <- poolJob{session: session, run: run}:
		return true
	default:
		log.Warn().Str("module", "app.pool").Str("session", string(session)).Msg("analysis queue full, job dropped")
		return false
	}
}

func (p *AnalysisPool) worker(i int) {
	defer p.wg.Done()
	for j := range p.queues[i] {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		j.run(ctx)
		cancel()
	}
}

// Close drains the queues and waits for in-flight jobs.
func (p *AnalysisPool) Close() {
	p.once.Do(func() {
		for _, q := range p.queues {
			close(q)
		}
		p.wg.Wait()
	})
}
