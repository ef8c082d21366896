package metrics

import (
	"time"

	"github.com/cuemby/ridgeline/pkg/executor"
	"github.com/cuemby/ridgeline/pkg/types"
)

// Collector periodically samples executor/metadata state into the gauge
// metrics in metrics.go. It only sets point-in-time gauges; it does not
// update any counter or histogram.
type Collector struct {
	exec   *executor.Executor
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(exec *executor.Executor) *Collector {
	return &Collector{
		exec:   exec,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectProjectMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectProjectMetrics() {
	registry, err := c.exec.CurrentRegistry()
	if err != nil {
		return
	}

	projects := 0
	repoStatus := make(map[types.RepositoryStatus]int)

	for name, project := range registry.Projects {
		if project.Removal != nil {
			continue
		}
		projects++

		meta, err := c.exec.ProjectMetadata(name)
		if err != nil {
			continue
		}
		for _, repo := range meta.Repositories {
			if repo.Removal != nil {
				continue
			}
			repoStatus[repo.Status]++
		}
	}

	ProjectsTotal.Set(float64(projects))
	AppIdentitiesTotal.Set(float64(len(registry.AppIdentities)))
	for status, count := range repoStatus {
		RepositoriesTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.exec.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.exec.RaftStats()
	if stats == nil {
		return
	}
	if lastIndex, ok := stats["last_log_index"].(uint64); ok {
		RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"].(uint64); ok {
		RaftAppliedIndex.Set(float64(appliedIndex))
	}
	if numPeers, ok := stats["num_peers"].(uint64); ok {
		RaftPeers.Set(float64(numPeers + 1))
	}
}
