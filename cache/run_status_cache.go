package cache

import (
	"fmt"
	"time"

	"github.com/mohitkumar/govflow/model"
	c "github.com/patrickmn/go-cache"
)

// RunStatusCache keeps the last known status of runs for cheap status reads.
// Resting statuses are kept until evicted, running ones expire quickly.
type RunStatusCache struct {
	cache *c.Cache
	ttl   time.Duration
}

func NewRunStatusCache(ttl time.Duration) *RunStatusCache {
	return &RunStatusCache{
		cache: c.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (ch *RunStatusCache) SaveRunStatus(runId string, status model.RunStatus) {
	expiry := c.NoExpiration
	if !status.IsTerminal() {
		expiry = ch.ttl
	}
	ch.cache.Set(runId, string(status), expiry)
}

func (ch *RunStatusCache) GetRunStatus(runId string) (model.RunStatus, bool) {
	status, found := ch.cache.Get(runId)
	if found {
		return model.RunStatus(fmt.Sprintf("%v", status)), true
	}
	return model.RunStatus(""), false
}

func (ch *RunStatusCache) Delete(runId string) {
	ch.cache.Delete(runId)
}
