// Package redis backs live presence with Redis so audience membership
// survives service restarts and can be shared across instances.
package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trivia-service/internal/app"
)

const (
	indexKey  = "quiz:presence:index"
	playerKey = "quiz:presence:player:"
)

// Presence is the Redis-backed presence store. All operations are
// best-effort: failures are logged and read as "nobody present".
type Presence struct {
	client *redis.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewPresence creates a presence store with an existing client (shared
// with tests via miniredis).
func NewPresence(client *redis.Client, log *zap.Logger) *Presence {
	return &Presence{client: client, log: log, now: time.Now}
}

func (p *Presence) MarkJoin(ctx context.Context, member app.Member, channel string, perms []string) {
	key := playerKey + member.ID
	joined := p.now().UnixMilli()

	pipe := p.client.Pipeline()
	// Keep the original join time for an already-present participant.
	pipe.ZAddNX(ctx, indexKey, redis.Z{Score: float64(joined), Member: member.ID})
	pipe.HSetNX(ctx, key, "joined_ms", joined)
	pipe.HSet(ctx, key,
		"name", member.Name,
		"channel", channel,
		"perms", strings.Join(perms, " "),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn("failed to mark presence join", zap.String("player", member.ID), zap.Error(err))
	}
}

func (p *Presence) MarkLeave(ctx context.Context, playerID string) {
	pipe := p.client.Pipeline()
	pipe.ZRem(ctx, indexKey, playerID)
	pipe.Del(ctx, playerKey+playerID)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn("failed to clear presence", zap.String("player", playerID), zap.Error(err))
	}
}

func (p *Presence) Audience(ctx context.Context, filter app.ScopeFilter) []app.Member {
	ids, err := p.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		p.log.Warn("failed to read presence index", zap.Error(err))
		return nil
	}

	var members []app.Member
	for _, id := range ids {
		fields, err := p.client.HGetAll(ctx, playerKey+id).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		if !matchesScope(fields, filter) {
			continue
		}
		members = append(members, app.Member{ID: id, Name: fields["name"]})
	}
	return members
}

func (p *Presence) Resolve(ctx context.Context, ids []string) []app.Member {
	var members []app.Member
	for _, id := range ids {
		fields, err := p.client.HGetAll(ctx, playerKey+id).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		members = append(members, app.Member{ID: id, Name: fields["name"]})
	}
	return members
}

// ChannelOf returns the channel a present participant joined with.
func (p *Presence) ChannelOf(ctx context.Context, playerID string) (string, bool) {
	fields, err := p.client.HGetAll(ctx, playerKey+playerID).Result()
	if err != nil || len(fields) == 0 {
		return "", false
	}
	return fields["channel"], true
}

func (p *Presence) JoinedAt(ctx context.Context, playerID string) (time.Time, bool) {
	raw, err := p.client.HGet(ctx, playerKey+playerID, "joined_ms").Result()
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func matchesScope(fields map[string]string, filter app.ScopeFilter) bool {
	switch filter.Scope {
	case app.ScopeChannel:
		return filter.Channel == "" || strings.EqualFold(fields["channel"], filter.Channel)
	case app.ScopePermission:
		if filter.Permission == "" {
			return true
		}
		for _, perm := range strings.Fields(fields["perms"]) {
			if perm == filter.Permission {
				return true
			}
		}
		return false
	default:
		return true
	}
}
