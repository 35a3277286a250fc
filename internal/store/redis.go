package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	appmetrics "typing-duel/internal/metrics"
	"typing-duel/internal/models"
)

const defaultMaxRetries = 32

// RedisStore keeps each match as a msgpack blob under game:{code} and each
// player's pending words in the hash game:{code}:{pid}:words.
type RedisStore struct {
	rdb        *redis.Client
	ttl        time.Duration
	maxRetries int
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, maxRetries: defaultMaxRetries}
}

func matchKey(code string) string { return "game:" + code }

func wordsKey(code, playerID string) string { return "game:" + code + ":" + playerID + ":words" }

// reader is the read surface shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *RedisStore) Create(ctx context.Context, m *models.Match) error {
	blob, err := encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode match: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, matchKey(m.Code), blob, s.ttl).Result()
	if err != nil {
		return transient(ctx, "create match", err)
	}
	if !ok {
		return models.ErrCodeTaken
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (*models.Match, error) {
	m, err := readMatch(ctx, s.rdb, code)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, transient(ctx, "get match", err)
	}
	return m, err
}

func (s *RedisStore) Pending(ctx context.Context, code, playerID string) (map[string]*models.PendingWord, error) {
	n, err := s.rdb.Exists(ctx, matchKey(code)).Result()
	if err != nil {
		return nil, transient(ctx, "check match", err)
	}
	if n == 0 {
		return nil, models.ErrNotFound
	}
	ws, err := readWords(ctx, s.rdb, code, playerID)
	if err != nil {
		return nil, transient(ctx, "get pending words", err)
	}
	return ws, nil
}

func (s *RedisStore) Update(ctx context.Context, code string, fn func(*State) error) error {
	key := matchKey(code)
	var fnErr error

	txf := func(tx *redis.Tx) error {
		m, err := readMatch(ctx, tx, code)
		if err != nil {
			return err
		}
		pids := m.PlayerIDs()
		if len(pids) > 0 {
			keys := make([]string, 0, len(pids))
			for _, pid := range pids {
				keys = append(keys, wordsKey(code, pid))
			}
			if err := tx.Watch(ctx, keys...).Err(); err != nil {
				return err
			}
		}

		st := &State{Match: m, Pending: make(map[string]map[string]*models.PendingWord, len(pids))}
		orig := make(map[string]map[string]bool, len(pids))
		for _, pid := range pids {
			ws, err := readWords(ctx, tx, code, pid)
			if err != nil {
				return err
			}
			st.Pending[pid] = ws
			orig[pid] = make(map[string]bool, len(ws))
			for id := range ws {
				orig[pid][id] = true
			}
		}

		if err := fn(st); err != nil {
			fnErr = err
			return err
		}
		st.Match.Version++

		blob, err := encode(st.Match)
		if err != nil {
			fnErr = fmt.Errorf("failed to encode match: %w", err)
			return fnErr
		}
		added := make(map[string][]any)
		for pid, ws := range st.Pending {
			for id, w := range ws {
				if orig[pid][id] {
					continue
				}
				b, err := encode(w)
				if err != nil {
					fnErr = fmt.Errorf("failed to encode word: %w", err)
					return fnErr
				}
				added[pid] = append(added[pid], id, b)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, blob, s.ttl)
			for pid, ids := range orig {
				ws := st.Pending[pid]
				var removed []string
				for id := range ids {
					if _, ok := ws[id]; !ok {
						removed = append(removed, id)
					}
				}
				if len(removed) > 0 {
					pipe.HDel(ctx, wordsKey(code, pid), removed...)
				}
			}
			for pid, kv := range added {
				pipe.HSet(ctx, wordsKey(code, pid), kv...)
			}
			for pid := range st.Pending {
				pipe.Expire(ctx, wordsKey(code, pid), s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		fnErr = nil
		err := s.rdb.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case fnErr != nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			appmetrics.StoreConflictsTotal.Inc()
			time.Sleep(time.Duration(rand.Intn(attempt+1)+1) * time.Millisecond)
		case errors.Is(err, models.ErrNotFound):
			return err
		default:
			return transient(ctx, "update match", err)
		}
	}
	return fmt.Errorf("update %s after %d attempts: %w", code, s.maxRetries, models.ErrConflict)
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	keys := []string{matchKey(code)}
	if m, err := readMatch(ctx, s.rdb, code); err == nil {
		for _, pid := range m.PlayerIDs() {
			keys = append(keys, wordsKey(code, pid))
		}
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return transient(ctx, "delete match", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func readMatch(ctx context.Context, r reader, code string) (*models.Match, error) {
	b, err := r.Get(ctx, matchKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var m models.Match
	if err := decode(b, &m); err != nil {
		return nil, fmt.Errorf("failed to decode match %s: %w", code, err)
	}
	if m.Players == nil {
		m.Players = make(map[string]*models.PlayerState)
	}
	return &m, nil
}

func readWords(ctx context.Context, r reader, code, playerID string) (map[string]*models.PendingWord, error) {
	raw, err := r.HGetAll(ctx, wordsKey(code, playerID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.PendingWord, len(raw))
	for id, v := range raw {
		var w models.PendingWord
		if err := decode([]byte(v), &w); err != nil {
			return nil, fmt.Errorf("failed to decode word %s: %w", id, err)
		}
		out[id] = &w
	}
	return out, nil
}

// Records reuse the json tags so stored and broadcast field names agree.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func transient(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("failed to %s: %w: %w", op, models.ErrTransient, err)
}
