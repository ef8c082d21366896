package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cuemby/ridgeline/pkg/log"
	"github.com/cuemby/ridgeline/pkg/metrics"
	"github.com/cuemby/ridgeline/pkg/types"
)

// Scheduler runs cron-scheduled mirror tasks. It is the zone-pinned
// analogue of pkg/reconciler.Reconciler's ticker loop: instead of one
// ticker driving a single reconcile pass, a cron.Cron entry per task
// drives each task's own schedule, and zone pinning decides whether this
// node's scheduler actually runs a given tick or skips it.
type Scheduler struct {
	cron    *cron.Cron
	access  *MirrorAccessController
	factory TaskFactory
	store   LocalStore
	creds   CredentialResolver

	zone         string
	clusterZones map[string]bool
	defaultZone  string

	mu      sync.Mutex
	entries map[string]cron.EntryID
	configs map[string]types.MirrorTaskConfig

	listeners *listenerBroker
}

// NewScheduler creates a Scheduler for this node. zone is this node's own
// zone (empty if the cluster is not zone-aware); clusterZones is the full
// set of zones named in the cluster configuration; defaultZone is the zone
// that runs tasks with no zone set.
func NewScheduler(zone, defaultZone string, clusterZones []string, access *MirrorAccessController, factory TaskFactory, store LocalStore, creds CredentialResolver) *Scheduler {
	zones := make(map[string]bool, len(clusterZones))
	for _, z := range clusterZones {
		zones[z] = true
	}
	return &Scheduler{
		cron:         cron.New(),
		access:       access,
		factory:      factory,
		store:        store,
		creds:        creds,
		zone:         zone,
		defaultZone:  defaultZone,
		clusterZones: zones,
		entries:      make(map[string]cron.EntryID),
		configs:      make(map[string]types.MirrorTaskConfig),
		listeners:    newListenerBroker(),
	}
}

// AddListener registers l for every task's lifecycle notifications.
func (s *Scheduler) AddListener(l Listener) {
	s.listeners.register(l)
}

// Start begins the cron scheduler's dispatch loop.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler; in-flight runs are allowed to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// shouldRunHere implements zone pinning: a task with zone=Z runs only on a
// node in zone Z; zone=null runs only in the default zone; a zone absent
// from the cluster configuration is never run anywhere. It checks zones
// only; it does not check whether this node is the Raft leader.
func (s *Scheduler) shouldRunHere(cfg types.MirrorTaskConfig) bool {
	if cfg.Zone == "" {
		return s.zone == s.defaultZone
	}
	if !s.clusterZones[cfg.Zone] {
		return false
	}
	return s.zone == cfg.Zone
}

// AddTask registers cfg on the scheduler's cron, replacing any existing
// entry for the same task ID.
func (s *Scheduler) AddTask(cfg types.MirrorTaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[cfg.ID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, cfg.ID)
	}
	s.configs[cfg.ID] = cfg

	if !cfg.Enabled {
		return nil
	}

	entryID, err := s.cron.AddFunc(cfg.Schedule, func() { s.runTask(cfg.ID) })
	if err != nil {
		return fmt.Errorf("mirror: invalid schedule %q for task %s: %w", cfg.Schedule, cfg.ID, err)
	}
	s.entries[cfg.ID] = entryID
	return nil
}

// RemoveTask unregisters a task; a run already in flight completes.
func (s *Scheduler) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	delete(s.configs, id)
}

// RunNow executes a registered task immediately, bypassing its cron
// schedule — used by an operator-triggered manual mirror run.
func (s *Scheduler) RunNow(ctx context.Context, id string) (types.MirrorResult, error) {
	s.mu.Lock()
	cfg, ok := s.configs[id]
	s.mu.Unlock()
	if !ok {
		return types.MirrorResult{}, fmt.Errorf("mirror: unknown task %s", id)
	}
	return s.execute(ctx, cfg)
}

func (s *Scheduler) runTask(id string) {
	s.mu.Lock()
	cfg, ok := s.configs[id]
	s.mu.Unlock()
	if !ok || !cfg.Enabled {
		return
	}
	if !s.shouldRunHere(cfg) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tickStart := time.Now()
	_, err := s.execute(ctx, cfg)
	metrics.ReconciliationDuration.Observe(time.Since(tickStart).Seconds())
	metrics.ReconciliationCyclesTotal.Inc()
	if err != nil {
		log.Error("mirror: task run failed: " + err.Error())
	}
}

func (s *Scheduler) execute(ctx context.Context, cfg types.MirrorTaskConfig) (types.MirrorResult, error) {
	startedAt := time.Now()
	s.listeners.notifyStart(cfg.ID)
	defer func() {
		metrics.MirrorRunDuration.WithLabelValues(cfg.ID).Observe(time.Since(startedAt).Seconds())
	}()

	if !s.access.Allowed(cfg.RemoteURI) {
		result := types.MirrorResult{
			TaskID:      cfg.ID,
			Status:      types.MirrorFailed,
			Description: fmt.Sprintf("remote %q denied by access control", cfg.RemoteURI),
			StartedAt:   startedAt,
			FinishedAt:  time.Now(),
		}
		metrics.MirrorRunsTotal.WithLabelValues(cfg.ID, string(result.Status)).Inc()
		s.listeners.notifyComplete(result)
		return result, nil
	}

	cred, err := s.creds.Resolve(cfg.CredentialRef)
	if err != nil {
		metrics.MirrorRunsTotal.WithLabelValues(cfg.ID, string(types.MirrorFailed)).Inc()
		s.listeners.notifyError(cfg.ID, err)
		return types.MirrorResult{}, err
	}

	task, err := s.factory(cfg, cred, s.store)
	if err != nil {
		metrics.MirrorRunsTotal.WithLabelValues(cfg.ID, string(types.MirrorFailed)).Inc()
		s.listeners.notifyError(cfg.ID, err)
		return types.MirrorResult{}, err
	}

	result, err := task.Run(ctx)
	if err != nil {
		s.listeners.notifyError(cfg.ID, err)
		result = types.MirrorResult{
			TaskID:      cfg.ID,
			Status:      types.MirrorFailed,
			Description: err.Error(),
			StartedAt:   startedAt,
			FinishedAt:  time.Now(),
		}
	}
	metrics.MirrorRunsTotal.WithLabelValues(cfg.ID, string(result.Status)).Inc()
	s.listeners.notifyComplete(result)
	return result, nil
}
