// Package redisledger implements the bonus ledger on Redis.
// Reservation is a single SET NX; the key existing is the "already granted" signal.
package redisledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/okian/podium/internal/domain/ledger"
	"github.com/okian/podium/internal/domain/model"
)

const defaultPrefix = "podium:grant:"

// releaseScript deletes KEYS[1] only while it still holds the grant ARGV[1].
var releaseScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local ok, g = pcall(cjson.decode, raw)
if ok and g["id"] == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Ledger stores one Redis key per grant.
type Ledger struct {
	client redis.UniversalClient
	prefix string
}

var _ ledger.Ledger = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

// WithKeyPrefix namespaces grant keys.
func WithKeyPrefix(prefix string) Option {
	return func(l *Ledger) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// New returns a ledger on client.
func New(client redis.UniversalClient, opts ...Option) *Ledger {
	l := &Ledger{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dial connects to a single Redis node and verifies it answers.
func Dial(ctx context.Context, addr string, db int, opts ...Option) (*Ledger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client, opts...), nil
}

func (l *Ledger) key(k model.GrantKey) string {
	return l.prefix + k.String()
}

// Reserve implements ledger.Ledger.
func (l *Ledger) Reserve(ctx context.Context, g model.BonusGrant) (ledger.Outcome, error) {
	payload, err := json.Marshal(g)
	if err != nil {
		return 0, fmt.Errorf("encode grant: %w", err)
	}
	ok, err := l.client.SetNX(ctx, l.key(g.Key()), payload, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("reserve grant: %w", err)
	}
	if !ok {
		return ledger.AlreadyGranted, nil
	}
	return ledger.Reserved, nil
}

// Release implements ledger.Ledger.
func (l *Ledger) Release(ctx context.Context, key model.GrantKey, grantID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(key)}, grantID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release grant: %w", err)
	}
	return nil
}

// Lookup returns the grant stored for key, if any.
func (l *Ledger) Lookup(ctx context.Context, key model.GrantKey) (model.BonusGrant, bool, error) {
	raw, err := l.client.Get(ctx, l.key(key)).Bytes()
	if err == redis.Nil {
		return model.BonusGrant{}, false, nil
	}
	if err != nil {
		return model.BonusGrant{}, false, fmt.Errorf("lookup grant: %w", err)
	}
	var g model.BonusGrant
	if err := json.Unmarshal(raw, &g); err != nil {
		return model.BonusGrant{}, false, fmt.Errorf("decode grant: %w", err)
	}
	return g, true, nil
}

// Ping checks the connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the client.
func (l *Ledger) Close() error {
	return l.client.Close()
}
