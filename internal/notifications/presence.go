package notifications

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceSetKey     = "moderation:online"
	defaultPresenceSeenPrefix = "moderation:last_seen:"
	defaultPresenceTTL        = 90 * time.Second
	defaultReapInterval       = 60 * time.Second
)

// releaseScript removes this replica's heartbeat for a moderator and drops the
// moderator from the online set once no replica holds them.
// KEYS: set, seen hash. ARGV: replica, member.
var releaseScript = redis.NewScript(`
redis.call('HDEL', KEYS[2], ARGV[1])
if redis.call('HLEN', KEYS[2]) == 0 then
	redis.call('SREM', KEYS[1], ARGV[2])
	return 0
end
return 1
`)

// pruneScript drops heartbeats older than the cutoff and reports how many remain,
// removing the moderator from the online set when none do.
// KEYS: set, seen hash. ARGV: member, cutoff (unix seconds).
var pruneScript = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[2])
local live = 0
for i = 1, #fields, 2 do
	if tonumber(fields[i + 1]) < tonumber(ARGV[2]) then
		redis.call('HDEL', KEYS[2], fields[i])
	else
		live = live + 1
	end
end
if live == 0 then
	redis.call('SREM', KEYS[1], ARGV[1])
end
return live
`)

// PresenceConfig overrides the Redis keys and timings used by Presence.
// Zero values select the defaults.
type PresenceConfig struct {
	SetKey        string
	SeenKeyPrefix string
	TTL           time.Duration
	ReapInterval  time.Duration
	// ReplicaID names this process's heartbeat field; a random ID when empty.
	ReplicaID string
}

// Presence tracks which moderators are watching the feed. Local connection counts are
// authoritative for this process. In Redis every moderator has a hash of per-replica
// heartbeats, so one replica releasing a moderator leaves the others' entries alone.
// A moderator is online while any heartbeat is younger than the TTL.
type Presence struct {
	rdb *redis.Client

	mu    sync.Mutex
	local map[uint]int

	setKey     string
	seenPrefix string
	ttl        time.Duration
	replica    string
	now        func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence creates a Presence and, when rdb is set, starts the stale-entry reaper.
func NewPresence(rdb *redis.Client, cfg PresenceConfig) *Presence {
	p := &Presence{
		rdb:        rdb,
		local:      make(map[uint]int),
		setKey:     defaultPresenceSetKey,
		seenPrefix: defaultPresenceSeenPrefix,
		ttl:        defaultPresenceTTL,
		replica:    cfg.ReplicaID,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	if p.replica == "" {
		p.replica = uuid.NewString()
	}
	if cfg.SetKey != "" {
		p.setKey = cfg.SetKey
	}
	if cfg.SeenKeyPrefix != "" {
		p.seenPrefix = cfg.SeenKeyPrefix
	}
	if cfg.TTL > 0 {
		p.ttl = cfg.TTL
	}
	interval := defaultReapInterval
	if cfg.ReapInterval > 0 {
		interval = cfg.ReapInterval
	}

	if p.rdb != nil {
		go p.reapLoop(interval)
	}
	return p
}

// Register counts a new connection for userID.
func (p *Presence) Register(ctx context.Context, userID uint) {
	p.mu.Lock()
	p.local[userID]++
	p.mu.Unlock()
	p.Touch(ctx, userID)
}

// Touch refreshes this replica's heartbeat for userID.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p == nil || p.rdb == nil {
		return
	}
	pipe := p.rdb.TxPipeline()
	pipe.SAdd(ctx, p.setKey, idString(userID))
	pipe.HSet(ctx, p.seenKey(userID), p.replica, p.now().Unix())
	pipe.Expire(ctx, p.seenKey(userID), p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		hubLog.LogError(ctx, userID, err, "presence_touch")
	}
}

// Unregister drops one connection for userID. This replica's heartbeat is removed
// with its last connection; other replicas' heartbeats are kept.
func (p *Presence) Unregister(ctx context.Context, userID uint) {
	p.mu.Lock()
	n := p.local[userID] - 1
	if n > 0 {
		p.local[userID] = n
		p.mu.Unlock()
		return
	}
	delete(p.local, userID)
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	keys := []string{p.setKey, p.seenKey(userID)}
	if err := releaseScript.Run(ctx, p.rdb, keys, p.replica, idString(userID)).Err(); err != nil {
		hubLog.LogError(ctx, userID, err, "presence_unregister")
	}
}

// Online returns the sorted IDs of moderators connected to any replica.
// Redis failures fall back to this process's connections.
func (p *Presence) Online(ctx context.Context) []uint {
	seen := make(map[uint]struct{})
	p.mu.Lock()
	for id := range p.local {
		seen[id] = struct{}{}
	}
	p.mu.Unlock()

	if p.rdb != nil {
		for _, id := range p.liveMembers(ctx, false) {
			seen[id] = struct{}{}
		}
	}

	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// liveMembers returns set members with at least one fresh heartbeat. With prune set,
// stale heartbeats are deleted and members left without any are removed from the set.
func (p *Presence) liveMembers(ctx context.Context, prune bool) []uint {
	members, err := p.rdb.SMembers(ctx, p.setKey).Result()
	if err != nil {
		return nil
	}

	cutoff := p.now().Add(-p.ttl).Unix()
	live := make([]uint, 0, len(members))
	for _, raw := range members {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			continue
		}
		if prune {
			n, err := pruneScript.Run(ctx, p.rdb, []string{p.setKey, p.seenKey(uint(id))}, raw, cutoff).Int()
			if err == nil && n > 0 {
				live = append(live, uint(id))
			}
			continue
		}
		beats, err := p.rdb.HGetAll(ctx, p.seenKey(uint(id))).Result()
		if err != nil {
			continue
		}
		for _, v := range beats {
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil && ts >= cutoff {
				live = append(live, uint(id))
				break
			}
		}
	}
	return live
}

func (p *Presence) reapOnce(ctx context.Context) {
	if p.rdb != nil {
		p.liveMembers(ctx, true)
	}
}

func (p *Presence) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

// Stop ends the reaper. It is safe to call more than once.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *Presence) seenKey(userID uint) string {
	return p.seenPrefix + idString(userID)
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
