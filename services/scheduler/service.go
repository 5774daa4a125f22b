package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"filmlog/config"
	"filmlog/services/movies"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskAlreadyRunning = errors.New("task is already running")
)

// Maintainer is the movie store surface the periodic jobs need.
type Maintainer interface {
	SyncProviderCatalog(ctx context.Context) (int, error)
	SweepOrphans(ctx context.Context) (int64, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]int64, error)
	Update(ctx context.Context, movieID int64) (movies.UpdateResult, error)
}

var _ Maintainer = (*movies.Store)(nil)

const refreshWorkers = 4

// Service runs the catalog maintenance tasks defined in settings.
type Service struct {
	configManager *config.Manager
	movies        Maintainer

	// Runtime state
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// in-flight task ids; never persisted
	taskRunning map[string]bool
	taskMu      sync.RWMutex

	now func() time.Time
}

// NewService creates a scheduler over maintainer.
func NewService(configManager *config.Manager, maintainer Maintainer) *Service {
	return &Service{
		configManager: configManager,
		movies:        maintainer,
		taskRunning:   make(map[string]bool),
		ctx:           context.Background(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the background loop. It returns immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.schedulerLoop()

	log.Println("[scheduler] started")
	return nil
}

// Stop cancels the loop and waits for it until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stop timed out with tasks still running")
	}

	s.running = false
	return nil
}

func (s *Service) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Service) schedulerLoop() {
	defer s.wg.Done()

	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] load settings: %v", err)
		return
	}

	checkInterval := time.Duration(settings.ScheduledTasks.CheckIntervalSeconds) * time.Second
	if checkInterval < time.Second {
		checkInterval = 60 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	ctx := s.context()
	s.checkAndRunTasks()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunTasks()
		}
	}
}

// checkAndRunTasks starts every enabled task that is due
func (s *Service) checkAndRunTasks() {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] load settings: %v", err)
		return
	}

	for _, task := range settings.ScheduledTasks.Tasks {
		if !task.Enabled || !s.shouldRun(task) {
			continue
		}
		s.wg.Add(1)
		go func(t config.ScheduledTask) {
			defer s.wg.Done()
			s.executeTask(t)
		}(task)
	}
}

// shouldRun reports whether task is enabled and its interval has elapsed.
func (s *Service) shouldRun(task config.ScheduledTask) bool {
	if s.IsTaskRunning(task.ID) {
		return false
	}
	if task.LastRunAt == nil {
		return true
	}
	return s.now().Sub(*task.LastRunAt) >= interval(task.Frequency)
}

func interval(freq config.ScheduledTaskFrequency) time.Duration {
	switch freq {
	case config.ScheduledTaskFrequency1Min:
		return time.Minute
	case config.ScheduledTaskFrequency5Min:
		return 5 * time.Minute
	case config.ScheduledTaskFrequency15Min:
		return 15 * time.Minute
	case config.ScheduledTaskFrequency30Min:
		return 30 * time.Minute
	case config.ScheduledTaskFrequencyHourly:
		return time.Hour
	case config.ScheduledTaskFrequency6Hours:
		return 6 * time.Hour
	case config.ScheduledTaskFrequency12Hours:
		return 12 * time.Hour
	case config.ScheduledTaskFrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// executeTask runs a task and records the outcome in settings.
func (s *Service) executeTask(task config.ScheduledTask) {
	s.taskMu.Lock()
	if s.taskRunning[task.ID] {
		s.taskMu.Unlock()
		return
	}
	s.taskRunning[task.ID] = true
	s.taskMu.Unlock()

	defer func() {
		s.taskMu.Lock()
		delete(s.taskRunning, task.ID)
		s.taskMu.Unlock()
	}()

	log.Printf("[scheduler] running %s (%s)", task.Name, task.Type)

	ctx := s.context()
	var (
		err      error
		affected int
	)
	switch task.Type {
	case config.ScheduledTaskTypeProviderCatalogSync:
		affected, err = s.movies.SyncProviderCatalog(ctx)
	case config.ScheduledTaskTypeOrphanSweep:
		var n int64
		n, err = s.movies.SweepOrphans(ctx)
		affected = int(n)
	case config.ScheduledTaskTypeMetadataRefresh:
		affected, err = s.refreshStale(ctx, task)
	default:
		log.Printf("[scheduler] unknown task type %q", task.Type)
		return
	}

	s.updateTaskStatus(task.ID, err, affected)
}

// refreshStale re-fetches metadata for movies not updated within staleDays,
// at most batchSize per run. Individual failures do not stop the batch.
func (s *Service) refreshStale(ctx context.Context, task config.ScheduledTask) (int, error) {
	staleDays := configInt(task.Config, "staleDays", 30)
	batchSize := configInt(task.Config, "batchSize", 50)

	ids, err := s.movies.ListStale(ctx, s.now().AddDate(0, 0, -staleDays), batchSize)
	if err != nil {
		return 0, err
	}

	var updated atomic.Int64
	p := pool.New().WithErrors().WithMaxGoroutines(refreshWorkers)
	for _, id := range ids {
		p.Go(func() error {
			res, err := s.movies.Update(ctx, id)
			if err != nil {
				return fmt.Errorf("movie %d: %w", id, err)
			}
			if res == movies.Updated {
				updated.Add(1)
			}
			return nil
		})
	}
	err = p.Wait()
	return int(updated.Load()), err
}

func configInt(cfg map[string]string, key string, fallback int) int {
	if v, err := strconv.Atoi(cfg[key]); err == nil && v > 0 {
		return v
	}
	return fallback
}

// updateTaskStatus persists the outcome of a run.
func (s *Service) updateTaskStatus(taskID string, err error, affected int) {
	now := s.now()
	_, updateErr := s.configManager.Update(func(settings *config.Settings) error {
		for i := range settings.ScheduledTasks.Tasks {
			t := &settings.ScheduledTasks.Tasks[i]
			if t.ID != taskID {
				continue
			}
			t.LastRunAt = &now
			t.ItemsAffected = affected
			if err != nil {
				t.LastStatus = config.ScheduledTaskStatusError
				t.LastError = err.Error()
			} else {
				t.LastStatus = config.ScheduledTaskStatusSuccess
				t.LastError = ""
			}
			break
		}
		return nil
	})
	if updateErr != nil {
		log.Printf("[scheduler] save status of %s: %v", taskID, updateErr)
	}
	if err != nil {
		log.Printf("[scheduler] task %s failed: %v", taskID, err)
	} else {
		log.Printf("[scheduler] task %s done, %d items affected", taskID, affected)
	}
}

// RunTaskNow starts taskID in the background regardless of its schedule.
func (s *Service) RunTaskNow(taskID string) error {
	settings, err := s.configManager.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	for _, task := range settings.ScheduledTasks.Tasks {
		if task.ID != taskID {
			continue
		}
		if s.IsTaskRunning(taskID) {
			return ErrTaskAlreadyRunning
		}
		s.wg.Add(1)
		go func(t config.ScheduledTask) {
			defer s.wg.Done()
			s.executeTask(t)
		}(task)
		return nil
	}

	return ErrTaskNotFound
}

// Wait blocks until tasks started with RunTaskNow have finished. It must not
// be called while the background loop is running.
func (s *Service) Wait() {
	s.wg.Wait()
}

// GetTaskStatus returns the configured tasks, reporting in-flight ones as running.
func (s *Service) GetTaskStatus() []config.ScheduledTask {
	settings, err := s.configManager.Load()
	if err != nil {
		return nil
	}

	s.taskMu.RLock()
	defer s.taskMu.RUnlock()

	tasks := make([]config.ScheduledTask, len(settings.ScheduledTasks.Tasks))
	for i, task := range settings.ScheduledTasks.Tasks {
		tasks[i] = task
		if s.taskRunning[task.ID] {
			tasks[i].LastStatus = config.ScheduledTaskStatusRunning
		}
	}

	return tasks
}

func (s *Service) IsTaskRunning(taskID string) bool {
	s.taskMu.RLock()
	defer s.taskMu.RUnlock()
	return s.taskRunning[taskID]
}
