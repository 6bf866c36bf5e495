package router

import "sync"

// lockShards sizes the sharded lock table. Conversations hash to a shard by
// id; two conversations sharing a shard serialize against each other, which
// is harmless, while the table stays fixed-size regardless of how many
// conversations exist.
const lockShards = 128

// conversationLocks enforces the per-conversation exclusive section: at most
// one in-flight state-mutating routing call per conversation id at a time.
type conversationLocks struct {
	shards [lockShards]sync.Mutex
}

// acquire locks the conversation's shard and returns the release func.
func (l *conversationLocks) acquire(conversationID int64) func() {
	shard := &l.shards[uint64(conversationID)%lockShards]
	shard.Lock()

	return shard.Unlock
}
