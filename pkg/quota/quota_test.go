package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

func TestRegistryUnlimitedByDefault(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 100; i++ {
		assert.True(t, r.Allow("acme", "configs"))
	}
}

func TestRegistryDeniesAfterBurstExhausted(t *testing.T) {
	r := NewRegistry()
	r.SetQuota("acme", "configs", &types.WriteQuota{Permits: 2, PeriodSeconds: 1})

	assert.NoError(t, r.Check("acme", "configs"))
	assert.NoError(t, r.Check("acme", "configs"))

	err := r.Check("acme", "configs")
	assert.Equal(t, rerr.QuotaExceeded, rerr.CodeOf(err))
}

func TestRegistryRefillsAfterPeriod(t *testing.T) {
	r := NewRegistry()
	r.SetQuota("acme", "configs", &types.WriteQuota{Permits: 2, PeriodSeconds: 1})

	assert.NoError(t, r.Check("acme", "configs"))
	assert.NoError(t, r.Check("acme", "configs"))
	assert.Error(t, r.Check("acme", "configs"))

	time.Sleep(1100 * time.Millisecond)
	assert.NoError(t, r.Check("acme", "configs"))
}

func TestRegistryClearQuotaRestoresUnlimited(t *testing.T) {
	r := NewRegistry()
	r.SetQuota("acme", "configs", &types.WriteQuota{Permits: 1, PeriodSeconds: 60})
	assert.NoError(t, r.Check("acme", "configs"))
	assert.Error(t, r.Check("acme", "configs"))

	r.SetQuota("acme", "configs", nil)
	for i := 0; i < 10; i++ {
		assert.NoError(t, r.Check("acme", "configs"))
	}
}

func TestRegistryIsolatesPerRepository(t *testing.T) {
	r := NewRegistry()
	r.SetQuota("acme", "configs", &types.WriteQuota{Permits: 1, PeriodSeconds: 60})

	assert.NoError(t, r.Check("acme", "configs"))
	assert.Error(t, r.Check("acme", "configs"))
	assert.NoError(t, r.Check("acme", "other"))
}

func TestStatusGateStartsWritable(t *testing.T) {
	g := NewStatusGate()
	assert.Equal(t, types.StatusWritable, g.Status())
	assert.NoError(t, g.CheckWrite())
}

func TestStatusGateReplicationOnlyBlocksWrites(t *testing.T) {
	g := NewStatusGate()
	g.SetStatus(types.StatusReplicationOnly)

	err := g.CheckWrite()
	assert.Equal(t, rerr.ReadOnly, rerr.CodeOf(err))
}

func TestStatusGateShuttingDownIsStickyAndTakesPriority(t *testing.T) {
	g := NewStatusGate()
	g.BeginShutdown()

	assert.True(t, g.ShuttingDown())
	err := g.CheckWrite()
	assert.Equal(t, rerr.ShuttingDown, rerr.CodeOf(err))

	g.SetStatus(types.StatusWritable)
	err = g.CheckWrite()
	assert.Equal(t, rerr.ShuttingDown, rerr.CodeOf(err), "status changes must not clear shutdown")
}
