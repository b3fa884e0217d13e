package reporter

import (
	"context"
	"encoding/json"
	"errors"

	redis "github.com/redis/go-redis/v9"
)

// RedisSink appends JSON events to a Redis list.
type RedisSink struct {
	client *redis.Client
	key    string
}

// NewRedisSink connects to url and appends to key.
func NewRedisSink(url, key string) (*RedisSink, error) {
	if url == "" {
		return nil, errors.New("redis url not configured")
	}
	if key == "" {
		key = "autobuild:events"
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisSink{client: redis.NewClient(opt), key: key}, nil
}

func (r *RedisSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(Stamp(ev))
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, r.key, data).Err()
}

// List returns every event stored under the sink key.
func (r *RedisSink) List(ctx context.Context) ([]Event, error) {
	vals, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	items := make([]Event, 0, len(vals))
	for _, v := range vals {
		var ev Event
		if err := json.Unmarshal([]byte(v), &ev); err == nil {
			items = append(items, ev)
		}
	}
	return items, nil
}

func (r *RedisSink) Close() error { return r.client.Close() }
