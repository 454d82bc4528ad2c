package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/job"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
	"github.com/akolanti/PageIndexAPI/internal/pageindex"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

// Pool is an elastic set of workers. One worker always runs; the dispatcher
// adds more on signal up to MaxWorkerCount and idle extras retire.
type Pool struct {
	jobService  *job.Service
	service     pageindex.Service
	stop        chan bool
	wg          *sync.WaitGroup
	workerCount int64
	minWorkers  int64
	maxWorkers  int64
	idleTimeout time.Duration
	logger      *logger_i.Logger
}

func NewPool(jobService *job.Service, service pageindex.Service, stop chan bool, wg *sync.WaitGroup) *Pool {
	return &Pool{
		jobService:  jobService,
		service:     service,
		stop:        stop,
		wg:          wg,
		minWorkers:  config.MinWorkerCount,
		maxWorkers:  config.MaxWorkerCount,
		idleTimeout: config.IdleWorkerTimeout,
		logger:      logger_i.NewLogger("worker_pool"),
	}
}

func (p *Pool) Start() {
	p.logger.Info("worker_pool_start", "min_workers", p.minWorkers, "max_workers", p.maxWorkers)
	p.createWorker()
	go p.dispatcher()
}

func (p *Pool) WorkerCount() int64 {
	return atomic.LoadInt64(&p.workerCount)
}

func (p *Pool) dispatcher() {
	for {
		select {
		case <-p.jobService.DispatcherChannel:
			if p.WorkerCount() < p.maxWorkers {
				p.createWorker()
			}
		case <-p.stop:
			return
		}
	}
}

func (p *Pool) createWorker() {
	p.wg.Add(1)
	count := atomic.AddInt64(&p.workerCount, 1)
	metrics.IncrementActiveWorkerCount()
	p.logger.Debug("worker_created", "worker_count", count)
	go p.worker()
}

func (p *Pool) worker() {
	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case currentJob := <-p.jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			p.executeJob(currentJob)
			idle.Reset(p.idleTimeout)

		case <-p.stop:
			atomic.AddInt64(&p.workerCount, -1)
			p.removeWorker("stop signal")
			return

		case <-idle.C:
			if p.tryRetire() {
				p.removeWorker("idle timeout")
				return
			}
			idle.Reset(p.idleTimeout)
		}
	}
}

// tryRetire claims a slot above minWorkers so two idle workers cannot both
// take the pool below the floor.
func (p *Pool) tryRetire() bool {
	for {
		current := atomic.LoadInt64(&p.workerCount)
		if current <= p.minWorkers {
			return false
		}
		if atomic.CompareAndSwapInt64(&p.workerCount, current, current-1) {
			return true
		}
	}
}

func (p *Pool) removeWorker(reason string) {
	metrics.DecrementActiveWorkerCount()
	p.logger.Debug("worker_removed", "reason", reason, "worker_count", p.WorkerCount())
	p.wg.Done()
}
