package redis

import (
	"fmt"
	"strings"

	"github.com/buraksezer/consistent"
	rd "github.com/go-redis/redis/v9"
	"github.com/spaolacci/murmur3"
)

type hasher struct{}

func (h hasher) Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

type baseDao struct {
	redisClient    rd.UniversalClient
	namespace      string
	ring           *consistent.Consistent
	partitionCount int
}

func newBaseDao(conf Config) *baseDao {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs:    conf.Addrs,
		Password: conf.Password,
		PoolSize: conf.PoolSize,
	})
	partitions := conf.PartitionCount
	if partitions <= 0 {
		partitions = 16
	}
	ring := consistent.New(nil, consistent.Config{
		PartitionCount:    partitions,
		ReplicationFactor: 20,
		Load:              1.25,
		Hasher:            hasher{},
	})
	return &baseDao{
		redisClient:    redisClient,
		namespace:      conf.Namespace,
		ring:           ring,
		partitionCount: partitions,
	}
}

func (bs *baseDao) getNamespaceKey(args ...string) string {
	return fmt.Sprintf("%s:%s", bs.namespace, strings.Join(args, ":"))
}

// getPartition maps a run id onto one of the run hashes.
func (bs *baseDao) getPartition(runId string) string {
	return fmt.Sprintf("%d", bs.ring.FindPartitionID([]byte(runId)))
}

// hashTag keeps all keys of one run in the same cluster slot.
func hashTag(id string) string {
	return "{" + id + "}"
}
