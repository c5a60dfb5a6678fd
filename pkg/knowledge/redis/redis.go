package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/consts"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "dossier:kb:"

// RedisStore implements knowledge.Store using Redis.
//
// Layout under the key prefix:
//
//	seq              INCR counter for ids
//	ids              list of ids in insertion order
//	pair:{id}        hash with the pair fields
//	sources          set of non-empty source labels
//	source:{label}   set of ids for one source
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// New creates a new RedisStore.
func New(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultPrefix}
}

// WithPrefix returns a copy of the store that uses prefix for its keys.
func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	return &RedisStore{client: s.client, prefix: prefix}
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (s *RedisStore) pairKey(id string) string    { return s.key("pair", id) }
func (s *RedisStore) sourceKey(src string) string { return s.key("source", src) }

// Add implements knowledge.Store.
func (s *RedisStore) Add(ctx context.Context, pair knowledge.Pair, fingerprint []float32) (*knowledge.Record, error) {
	recs, err := s.AddBatch(ctx, []knowledge.Pair{pair}, [][]float32{fingerprint})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// AddBatch reserves ids with INCRBY and writes every pair in one MULTI/EXEC.
func (s *RedisStore) AddBatch(ctx context.Context, pairs []knowledge.Pair, fingerprints [][]float32) ([]knowledge.Record, error) {
	if err := knowledge.ValidateBatch(pairs, fingerprints); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	last, err := s.client.IncrBy(ctx, s.key("seq"), int64(len(pairs))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve ids: %w", err)
	}
	first := last - int64(len(pairs)) + 1
	now := time.Now().UTC()

	out := make([]knowledge.Record, len(pairs))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, p := range pairs {
			id := strconv.FormatInt(first+int64(i), 10)
			fp := knowledge.CloneFingerprint(knowledge.FingerprintAt(fingerprints, i))

			fields := map[string]any{
				consts.ColQuestion:   p.Question,
				consts.ColAnswer:     p.Answer,
				consts.ColSourceFile: p.SourceFile,
				consts.ColCategory:   p.Category,
				consts.ColCreatedAt:  now.Format(time.RFC3339Nano),
			}
			if len(fp) > 0 {
				b, err := json.Marshal(fp)
				if err != nil {
					return fmt.Errorf("failed to marshal fingerprint: %w", err)
				}
				fields[consts.ColFingerprint] = b
			}

			pipe.HSet(ctx, s.pairKey(id), fields)
			pipe.RPush(ctx, s.key("ids"), id)
			if p.SourceFile != "" {
				pipe.SAdd(ctx, s.sourceKey(p.SourceFile), id)
				pipe.SAdd(ctx, s.key("sources"), p.SourceFile)
			}

			out[i] = knowledge.Record{ID: id, Pair: p, Fingerprint: fp, CreatedAt: now}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert pairs: %w", err)
	}
	return out, nil
}

// setFingerprintScript writes or clears the fingerprint field only while the
// pair hash exists, so a concurrent delete cannot leave an orphan hash.
// ARGV[2] is empty to clear the field. Returns 0 when the pair is gone.
var setFingerprintScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
if ARGV[2] == "" then
	redis.call("HDEL", KEYS[1], ARGV[1])
else
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
end
return 1
`)

// SetFingerprint implements knowledge.Store.
func (s *RedisStore) SetFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	var value string
	if len(fingerprint) > 0 {
		b, err := json.Marshal(fingerprint)
		if err != nil {
			return fmt.Errorf("failed to marshal fingerprint: %w", err)
		}
		value = string(b)
	}

	n, err := setFingerprintScript.Run(ctx, s.client, []string{s.pairKey(id)}, consts.ColFingerprint, value).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return knowledge.ErrNotFound
	}
	return nil
}

// All implements knowledge.Store.
func (s *RedisStore) All(ctx context.Context) ([]knowledge.Record, error) {
	ids, err := s.client.LRange(ctx, s.key("ids"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

// BySource implements knowledge.Store.
func (s *RedisStore) BySource(ctx context.Context, source string) ([]knowledge.Record, error) {
	ids, err := s.client.SMembers(ctx, s.sourceKey(source)).Result()
	if err != nil {
		return nil, err
	}
	sortIDs(ids)
	return s.load(ctx, ids)
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]knowledge.Record, error) {
	records := []knowledge.Record{}
	if len(ids) == 0 {
		return records, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.pairKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := hashRecord(ids[i], fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Sources implements knowledge.Store.
func (s *RedisStore) Sources(ctx context.Context) ([]string, error) {
	sources, err := s.client.SMembers(ctx, s.key("sources")).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(sources)
	return sources, nil
}

// Stats implements knowledge.Store.
func (s *RedisStore) Stats(ctx context.Context) (knowledge.Stats, error) {
	var stats knowledge.Stats

	records, err := s.All(ctx)
	if err != nil {
		return stats, err
	}
	stats.TotalPairs = int64(len(records))
	for _, r := range records {
		if len(r.Fingerprint) > 0 {
			stats.WithFingerprints++
		}
	}

	stats.SourceFiles, err = s.client.SCard(ctx, s.key("sources")).Result()
	return stats, err
}

// DeleteBySource implements knowledge.Store.
func (s *RedisStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	ids, err := s.client.SMembers(ctx, s.sourceKey(source)).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.pairKey(id))
			pipe.LRem(ctx, s.key("ids"), 0, id)
		}
		pipe.Del(ctx, s.sourceKey(source))
		pipe.SRem(ctx, s.key("sources"), source)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// Clear removes every pair. The id counter is kept.
func (s *RedisStore) Clear(ctx context.Context) error {
	ids, err := s.client.LRange(ctx, s.key("ids"), 0, -1).Result()
	if err != nil {
		return err
	}
	sources, err := s.client.SMembers(ctx, s.key("sources")).Result()
	if err != nil {
		return err
	}

	keys := []string{s.key("ids"), s.key("sources")}
	for _, id := range ids {
		keys = append(keys, s.pairKey(id))
	}
	for _, src := range sources {
		keys = append(keys, s.sourceKey(src))
	}
	return s.client.Del(ctx, keys...).Err()
}

// Close closes the client.
func (s *RedisStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func hashRecord(id string, fields map[string]string) (knowledge.Record, error) {
	rec := knowledge.Record{
		ID: id,
		Pair: knowledge.Pair{
			Question:   fields[consts.ColQuestion],
			Answer:     fields[consts.ColAnswer],
			SourceFile: fields[consts.ColSourceFile],
			Category:   fields[consts.ColCategory],
		},
	}
	if raw := fields[consts.ColFingerprint]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Fingerprint); err != nil {
			return rec, fmt.Errorf("failed to unmarshal fingerprint of %s: %w", id, err)
		}
	}
	if raw := fields[consts.ColCreatedAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return rec, fmt.Errorf("failed to parse created_at of %s: %w", id, err)
		}
		rec.CreatedAt = t
	}
	return rec, nil
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseInt(ids[i], 10, 64)
		b, _ := strconv.ParseInt(ids[j], 10, 64)
		return a < b
	})
}
