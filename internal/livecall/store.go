package livecall

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Call statuses as tracked in the live-call index.
const (
	StatusRinging = "ringing"
	StatusActive  = "active"
	StatusEnded   = "ended"
)

const (
	keyPrefix = "voice:call:"
	callTTL   = 24 * time.Hour
)

// State is the cross-process view of one in-flight call. The conversation
// itself lives in the session store; this index only tracks liveness so the
// dashboard and outbound dialer can see calls owned by other instances.
type State struct {
	CallID         string    `json:"call_id"`
	CallerNumber   string    `json:"caller_number"`
	Status         string    `json:"status"`
	TurnCount      int       `json:"turn_count"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Store mirrors call liveness into Redis. A nil store is valid and tracks
// nothing, for single-instance deployments without Redis.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewStore creates a live-call store backed by client.
func NewStore(client *redis.Client) *Store {
	if client == nil {
		panic("livecall: redis client cannot be nil")
	}
	return &Store{
		redis:  client,
		tracer: otel.Tracer("voicebot.internal.livecall"),
	}
}

func callKey(callID string) string {
	return keyPrefix + callID
}

// Save writes the full state for one call.
func (s *Store) Save(ctx context.Context, state State) error {
	if s == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "livecall.save")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("livecall: marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, callKey(state.CallID), data, callTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("livecall: persist state: %w", err)
	}
	return nil
}

// Get loads the state for one call. A missing call returns (nil, nil).
func (s *Store) Get(ctx context.Context, callID string) (*State, error) {
	if s == nil {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "livecall.get")
	defer span.End()

	data, err := s.redis.Get(ctx, callKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("livecall: load state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("livecall: decode state: %w", err)
	}
	return &state, nil
}

// IncrementTurn bumps the turn counter and activity timestamp for one call.
// Unknown calls are ignored.
func (s *Store) IncrementTurn(ctx context.Context, callID string) error {
	if s == nil {
		return nil
	}
	state, err := s.Get(ctx, callID)
	if err != nil || state == nil {
		return err
	}
	state.TurnCount++
	state.Status = StatusActive
	state.LastActivityAt = time.Now().UTC()
	return s.Save(ctx, *state)
}

// End marks one call ended. Unknown calls are ignored.
func (s *Store) End(ctx context.Context, callID string) error {
	if s == nil {
		return nil
	}
	state, err := s.Get(ctx, callID)
	if err != nil || state == nil {
		return err
	}
	state.Status = StatusEnded
	state.LastActivityAt = time.Now().UTC()
	return s.Save(ctx, *state)
}

// ActiveCount counts tracked calls that have not ended yet.
func (s *Store) ActiveCount(ctx context.Context) (int, error) {
	if s == nil {
		return 0, nil
	}
	ctx, span := s.tracer.Start(ctx, "livecall.active_count")
	defer span.End()

	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("livecall: scan calls: %w", err)
		}
		for _, key := range keys {
			data, err := s.redis.Get(ctx, key).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				span.RecordError(err)
				return 0, fmt.Errorf("livecall: load state: %w", err)
			}
			var state State
			if err := json.Unmarshal(data, &state); err != nil {
				continue
			}
			if state.Status != StatusEnded {
				count++
			}
		}
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
