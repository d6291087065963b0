package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ledgerchat/internal/utils/log"
)

const channelPrefix = "ledgerchat.events."

// RedisPort broadcasts over a redis pub/sub channel scoped to the
// conversation.
type RedisPort struct {
	rdb   *redis.Client
	scope string

	mu      sync.Mutex
	handler Handler
	sub     *redis.PubSub
	cancel  context.CancelFunc
}

// NewRedisPort verifies the connection and returns a port for scope.
// A nil error guarantees Publish reaches sibling subscribers.
func NewRedisPort(ctx context.Context, rdb *redis.Client, scope string) (*RedisPort, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisPort{rdb: rdb, scope: scope}, nil
}

func (p *RedisPort) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, channelPrefix+p.scope, data).Err()
}

func (p *RedisPort) Subscribe(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sub != nil {
		p.handler = h
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.handler = h
	p.sub = p.rdb.Subscribe(ctx, channelPrefix+p.scope)
	ch := p.sub.Channel()

	go func() {
		for msg := range ch {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Debug("drop malformed broadcast event", zap.Error(err))
				continue
			}
			p.mu.Lock()
			handler := p.handler
			p.mu.Unlock()
			if handler != nil {
				handler(ev)
			}
		}
	}()
}

func (p *RedisPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.sub != nil {
		err := p.sub.Close()
		p.sub = nil
		return err
	}
	return nil
}
