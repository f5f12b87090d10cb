package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fakhrymubarak/weather-board/internal/model"
	"github.com/fakhrymubarak/weather-board/internal/redis"
	redisv9 "github.com/redis/go-redis/v9"
)

var (
	ErrSurfaceNotFound = errors.New("surface not found")
	ErrSurfaceExists   = errors.New("surface already exists")
	ErrStaleGeneration = errors.New("stale lookup generation")
	ErrContention      = errors.New("display state contention")
)

// maxTxAttempts bounds optimistic-lock retries on a contended surface.
const maxTxAttempts = 8

// DisplayRepository stores the per-surface display state. Each lookup takes a
// generation token from BeginLookup; CommitLookup only applies a result whose
// token is still the latest one.
type DisplayRepository interface {
	Create(ctx context.Context, state *model.DisplayState) error
	Get(ctx context.Context, surfaceID string) (*model.DisplayState, error)
	Touch(ctx context.Context, surfaceID string) error
	Update(ctx context.Context, surfaceID string, fn func(*model.DisplayState) error) (*model.DisplayState, error)
	BeginLookup(ctx context.Context, surfaceID string) (int64, error)
	CommitLookup(ctx context.Context, surfaceID string, seq int64, reading *model.WeatherReading, derr *model.DisplayError) (*model.DisplayState, error)
	SetCredential(ctx context.Context, surfaceID, key string) error
	Credential(ctx context.Context, surfaceID string) (string, error)
	Delete(ctx context.Context, surfaceID string) error
}

type displayRepository struct {
	redisClient redisv9.UniversalClient
	ttl         time.Duration
	now         func() time.Time
}

// NewDisplayRepository creates a Redis-backed store. Every key of a surface
// expires ttl after the last Touch; writes keep the remaining TTL.
func NewDisplayRepository(ttl time.Duration, client ...redisv9.UniversalClient) DisplayRepository {
	var c redisv9.UniversalClient = redis.GetClient()
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	}
	return &displayRepository{redisClient: c, ttl: ttl, now: time.Now}
}

func stateKey(id string) string      { return "surface:" + id + ":state" }
func seqKey(id string) string        { return "surface:" + id + ":seq" }
func credentialKey(id string) string { return "surface:" + id + ":credential" }

func (r *displayRepository) Create(ctx context.Context, state *model.DisplayState) error {
	state.UpdatedAt = r.now()
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode display state: %w", err)
	}
	ok, err := r.redisClient.SetNX(ctx, stateKey(state.SurfaceID), b, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}
	if !ok {
		return ErrSurfaceExists
	}
	return r.redisClient.Set(ctx, seqKey(state.SurfaceID), state.Sequence, r.ttl).Err()
}

func (r *displayRepository) Get(ctx context.Context, surfaceID string) (*model.DisplayState, error) {
	var (
		stateCmd *redisv9.StringCmd
		seqCmd   *redisv9.StringCmd
		credCmd  *redisv9.IntCmd
	)
	_, err := r.redisClient.Pipelined(ctx, func(p redisv9.Pipeliner) error {
		stateCmd = p.Get(ctx, stateKey(surfaceID))
		seqCmd = p.Get(ctx, seqKey(surfaceID))
		credCmd = p.Exists(ctx, credentialKey(surfaceID))
		return nil
	})
	if err != nil && !errors.Is(err, redisv9.Nil) {
		return nil, fmt.Errorf("read surface: %w", err)
	}
	state, err := decodeState(stateCmd)
	if err != nil {
		return nil, err
	}
	seq, err := seqCmd.Int64()
	if err != nil && !errors.Is(err, redisv9.Nil) {
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	state.Sequence = seq
	state.HasCredential = credCmd.Val() > 0
	return state, nil
}

// Touch marks visitor activity and pushes the expiry of every key of the
// surface back to the full TTL.
func (r *displayRepository) Touch(ctx context.Context, surfaceID string) error {
	var state *redisv9.BoolCmd
	_, err := r.redisClient.TxPipelined(ctx, func(p redisv9.Pipeliner) error {
		state = p.Expire(ctx, stateKey(surfaceID), r.ttl)
		p.Expire(ctx, seqKey(surfaceID), r.ttl)
		p.Expire(ctx, credentialKey(surfaceID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("touch surface: %w", err)
	}
	if !state.Val() {
		return ErrSurfaceNotFound
	}
	return nil
}

// Update applies fn to the current state under an optimistic lock.
func (r *displayRepository) Update(ctx context.Context, surfaceID string, fn func(*model.DisplayState) error) (*model.DisplayState, error) {
	var out *model.DisplayState
	err := r.watch(ctx, func(tx *redisv9.Tx) error {
		state, err := decodeState(tx.Get(ctx, stateKey(surfaceID)))
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		if err := r.write(ctx, tx, surfaceID, state); err != nil {
			return err
		}
		out = state
		return nil
	}, stateKey(surfaceID))
	if err != nil {
		return nil, err
	}
	return r.fill(ctx, surfaceID, out)
}

func (r *displayRepository) BeginLookup(ctx context.Context, surfaceID string) (int64, error) {
	n, err := r.redisClient.Exists(ctx, stateKey(surfaceID)).Result()
	if err != nil {
		return 0, fmt.Errorf("check surface: %w", err)
	}
	if n == 0 {
		return 0, ErrSurfaceNotFound
	}
	var incr *redisv9.IntCmd
	_, err = r.redisClient.TxPipelined(ctx, func(p redisv9.Pipeliner) error {
		incr = p.Incr(ctx, seqKey(surfaceID))
		p.ExpireNX(ctx, seqKey(surfaceID), r.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("next generation: %w", err)
	}
	return incr.Val(), nil
}

// CommitLookup records the outcome of lookup seq. A failure keeps the last
// reading on screen and only replaces the error.
func (r *displayRepository) CommitLookup(ctx context.Context, surfaceID string, seq int64, reading *model.WeatherReading, derr *model.DisplayError) (*model.DisplayState, error) {
	var out *model.DisplayState
	err := r.watch(ctx, func(tx *redisv9.Tx) error {
		current, err := tx.Get(ctx, seqKey(surfaceID)).Int64()
		if err != nil && !errors.Is(err, redisv9.Nil) {
			return fmt.Errorf("read sequence: %w", err)
		}
		if current != seq {
			return ErrStaleGeneration
		}
		state, err := decodeState(tx.Get(ctx, stateKey(surfaceID)))
		if err != nil {
			return err
		}
		if reading != nil {
			state.Reading = reading
			state.Error = nil
		} else {
			state.Error = derr
		}
		state.AppliedSequence = seq
		if err := r.write(ctx, tx, surfaceID, state); err != nil {
			return err
		}
		out = state
		return nil
	}, seqKey(surfaceID), stateKey(surfaceID))
	if err != nil {
		return nil, err
	}
	return r.fill(ctx, surfaceID, out)
}

func (r *displayRepository) SetCredential(ctx context.Context, surfaceID, key string) error {
	n, err := r.redisClient.Exists(ctx, stateKey(surfaceID)).Result()
	if err != nil {
		return fmt.Errorf("check surface: %w", err)
	}
	if n == 0 {
		return ErrSurfaceNotFound
	}
	if key == "" {
		return r.redisClient.Del(ctx, credentialKey(surfaceID)).Err()
	}
	return r.redisClient.Set(ctx, credentialKey(surfaceID), key, r.ttl).Err()
}

// Credential returns the key stored for the surface, or "" when none is set.
func (r *displayRepository) Credential(ctx context.Context, surfaceID string) (string, error) {
	key, err := r.redisClient.Get(ctx, credentialKey(surfaceID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return key, nil
}

func (r *displayRepository) Delete(ctx context.Context, surfaceID string) error {
	return r.redisClient.Del(ctx, stateKey(surfaceID), seqKey(surfaceID), credentialKey(surfaceID)).Err()
}

func (r *displayRepository) watch(ctx context.Context, fn func(*redisv9.Tx) error, keys ...string) error {
	for i := 0; i < maxTxAttempts; i++ {
		err := r.redisClient.Watch(ctx, fn, keys...)
		if errors.Is(err, redisv9.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (r *displayRepository) write(ctx context.Context, tx *redisv9.Tx, surfaceID string, state *model.DisplayState) error {
	state.UpdatedAt = r.now()
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode display state: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(p redisv9.Pipeliner) error {
		p.SetArgs(ctx, stateKey(surfaceID), b, redisv9.SetArgs{Mode: "XX", KeepTTL: true})
		return nil
	})
	if errors.Is(err, redisv9.Nil) {
		// expired between read and write
		return ErrSurfaceNotFound
	}
	return err
}

// fill adds the fields that live outside the state blob.
func (r *displayRepository) fill(ctx context.Context, surfaceID string, state *model.DisplayState) (*model.DisplayState, error) {
	seq, err := r.redisClient.Get(ctx, seqKey(surfaceID)).Int64()
	if err != nil && !errors.Is(err, redisv9.Nil) {
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	n, err := r.redisClient.Exists(ctx, credentialKey(surfaceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check credential: %w", err)
	}
	state.Sequence = seq
	state.HasCredential = n > 0
	return state, nil
}

func decodeState(cmd *redisv9.StringCmd) (*model.DisplayState, error) {
	b, err := cmd.Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, ErrSurfaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read display state: %w", err)
	}
	var state model.DisplayState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decode display state: %w", err)
	}
	return &state, nil
}
