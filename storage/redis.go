package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// saveRecordScript writes the record and publishes the change only when the
// stored value differs, mirroring browser storage events which never fire for
// a no-op write.
const saveRecordScript = `
local current = redis.call("GET", KEYS[1])
if current == ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("PUBLISH", KEYS[2], ARGV[2])
return 1
`

const removeRecordScript = `
if redis.call("DEL", KEYS[1]) == 1 then
  redis.call("PUBLISH", KEYS[2], ARGV[1])
  return 1
end
return 0
`

var (
	saveRecordLua   = redis.NewScript(saveRecordScript)
	removeRecordLua = redis.NewScript(removeRecordScript)
)

// envelope is the pub/sub wire form. Value is the raw persisted record, or
// JSON null when the key was removed.
type envelope struct {
	Origin string          `json:"origin"`
	Value  json.RawMessage `json:"value"`
}

// Redis stores the record under one key and announces changes on
// "<key>:events".
type Redis struct {
	client  redis.UniversalClient
	key     string
	channel string
	origin  string
}

var _ Backend = (*Redis)(nil)

// NewRedis binds a backend to key. origin identifies writes made through it so
// that its own watcher skips them.
func NewRedis(client redis.UniversalClient, key, origin string) *Redis {
	return &Redis{
		client:  client,
		key:     key,
		channel: key + ":events",
		origin:  origin,
	}
}

// Channel returns the pub/sub channel used for change notifications.
func (r *Redis) Channel() string {
	return r.channel
}

func (r *Redis) Load(ctx context.Context) (Record, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		return Record{}, true, err
	}
	return rec, true, nil
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(envelope{Origin: r.origin, Value: data})
	if err != nil {
		return err
	}
	if err := saveRecordLua.Run(ctx, r.client, []string{r.key, r.channel}, string(data), string(msg)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context) error {
	msg, err := json.Marshal(envelope{Origin: r.origin, Value: json.RawMessage("null")})
	if err != nil {
		return err
	}
	if err := removeRecordLua.Run(ctx, r.client, []string{r.key, r.channel}, string(msg)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Watch(ctx context.Context) (<-chan Notification, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrUnavailable, r.channel, err)
	}

	out := make(chan Notification)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				n, self := r.decode(msg.Payload)
				if self {
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *Redis) decode(payload string) (Notification, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Notification{Key: r.key, Err: fmt.Errorf("%w: %v", ErrMalformedRecord, err)}, false
	}
	if env.Origin == r.origin {
		return Notification{}, true
	}

	n := Notification{Key: r.key, Origin: env.Origin}
	if len(env.Value) > 0 && string(env.Value) != "null" {
		n.NewValue = []byte(env.Value)
	}
	return n, false
}

// Close does not close the shared client; its owner does.
func (r *Redis) Close() error { return nil }
