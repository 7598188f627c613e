// Package presence tracks which connection each user is reachable on and which
// conversation, if any, they are currently viewing. State lives in Redis so every
// service instance sees the same registry.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connectionsKey = "presence:connections"
	viewingPrefix  = "presence:viewing:"
)

// Handle addresses one websocket connection on one service instance.
type Handle struct {
	InstanceID string
	ConnID     string
}

func (h Handle) String() string {
	return h.InstanceID + "/" + h.ConnID
}

func (h Handle) IsZero() bool {
	return h.InstanceID == "" && h.ConnID == ""
}

// ParseHandle reverses Handle.String.
func ParseHandle(s string) (Handle, error) {
	instance, conn, ok := strings.Cut(s, "/")
	if !ok || instance == "" || conn == "" {
		return Handle{}, fmt.Errorf("malformed connection handle %q", s)
	}
	return Handle{InstanceID: instance, ConnID: conn}, nil
}

// unregisterScript deletes the user's entry only while it still points at the caller's
// handle, so a stale disconnect never evicts a newer connection.
var unregisterScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	redis.call("HDEL", KEYS[1], ARGV[1])
	redis.call("DEL", KEYS[2])
	return 1
end
return 0
`)

// Registry is the Redis-backed presence registry.
type Registry struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRegistry builds a registry whose active-conversation entries expire after ttl
// unless refreshed.
func NewRegistry(rdb redis.UniversalClient, ttl time.Duration) *Registry {
	return &Registry{rdb: rdb, ttl: ttl}
}

// RegisterConnection maps userID to handle and returns the handle it replaced, or the
// zero Handle. The viewing marker belongs to the replaced connection, so it is cleared
// as well; the new socket has to join again.
func (r *Registry) RegisterConnection(ctx context.Context, userID string, h Handle) (Handle, error) {
	if userID == "" {
		return Handle{}, errors.New("presence: empty user id")
	}
	var prev *redis.StringCmd
	var set *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		prev = pipe.HGet(ctx, connectionsKey, userID)
		set = pipe.HSet(ctx, connectionsKey, userID, h.String())
		pipe.Del(ctx, viewingPrefix+userID)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Handle{}, fmt.Errorf("register connection: %w", err)
	}
	if err := set.Err(); err != nil {
		return Handle{}, fmt.Errorf("register connection: %w", err)
	}
	old, err := ParseHandle(prev.Val())
	if err != nil || old == h {
		return Handle{}, nil
	}
	return old, nil
}

// UnregisterConnection removes the mapping and the user's active conversation, but only
// when the stored handle equals h. A zero handle removes unconditionally. It reports
// whether anything was removed.
func (r *Registry) UnregisterConnection(ctx context.Context, userID string, h Handle) (bool, error) {
	if h.IsZero() {
		var removed *redis.IntCmd
		_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			removed = pipe.HDel(ctx, connectionsKey, userID)
			pipe.Del(ctx, viewingPrefix+userID)
			return nil
		})
		if err != nil {
			return false, fmt.Errorf("unregister connection: %w", err)
		}
		return removed.Val() > 0, nil
	}
	removed, err := unregisterScript.Run(ctx, r.rdb, []string{connectionsKey, viewingPrefix + userID}, userID, h.String()).Int()
	if err != nil {
		return false, fmt.Errorf("unregister connection: %w", err)
	}
	return removed == 1, nil
}

// LookupConnection returns the user's current handle, if any.
func (r *Registry) LookupConnection(ctx context.Context, userID string) (Handle, bool, error) {
	raw, err := r.rdb.HGet(ctx, connectionsKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return Handle{}, false, nil
	}
	if err != nil {
		return Handle{}, false, err
	}
	h, err := ParseHandle(raw)
	if err != nil {
		return Handle{}, false, err
	}
	return h, true, nil
}

func (r *Registry) IsOnline(ctx context.Context, userID string) (bool, error) {
	return r.rdb.HExists(ctx, connectionsKey, userID).Result()
}

// OnlineUsers filters userIDs down to those with a registered connection.
func (r *Registry) OnlineUsers(ctx context.Context, userIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	vals, err := r.rdb.HMGet(ctx, connectionsKey, userIDs...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		out[userIDs[i]] = v != nil
	}
	return out, nil
}

func (r *Registry) OnlineCount(ctx context.Context) (int64, error) {
	return r.rdb.HLen(ctx, connectionsKey).Result()
}

// SetActiveConversation records the conversation the user is viewing. A second call
// replaces the first and refreshes the expiry.
func (r *Registry) SetActiveConversation(ctx context.Context, userID, conversationID string) error {
	return r.rdb.Set(ctx, viewingPrefix+userID, conversationID, r.ttl).Err()
}

func (r *Registry) ClearActiveConversation(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, viewingPrefix+userID).Err()
}

// ActiveConversation returns the conversation the user is viewing, or "".
func (r *Registry) ActiveConversation(ctx context.Context, userID string) (string, error) {
	conv, err := r.rdb.Get(ctx, viewingPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return conv, err
}

// IsUserActivelyViewing is true only when the user holds a live connection and their
// recorded active conversation equals conversationID.
func (r *Registry) IsUserActivelyViewing(ctx context.Context, userID, conversationID string) (bool, error) {
	if conversationID == "" {
		return false, nil
	}
	var connected *redis.BoolCmd
	var active *redis.StringCmd
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		connected = pipe.HExists(ctx, connectionsKey, userID)
		active = pipe.Get(ctx, viewingPrefix+userID)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return connected.Val() && active.Val() == conversationID, nil
}

// PurgeInstance drops every connection registered by instanceID, used when an instance
// shuts down and its sockets are gone.
func (r *Registry) PurgeInstance(ctx context.Context, instanceID string) (int, error) {
	prefix := instanceID + "/"
	var cursor uint64
	purged := 0
	for {
		kv, next, err := r.rdb.HScan(ctx, connectionsKey, cursor, "*", 200).Result()
		if err != nil {
			return purged, err
		}
		for i := 0; i+1 < len(kv); i += 2 {
			userID, handle := kv[i], kv[i+1]
			if !strings.HasPrefix(handle, prefix) {
				continue
			}
			h, err := ParseHandle(handle)
			if err != nil {
				continue
			}
			ok, err := r.UnregisterConnection(ctx, userID, h)
			if err != nil {
				return purged, err
			}
			if ok {
				purged++
			}
		}
		cursor = next
		if cursor == 0 {
			return purged, nil
		}
	}
}
