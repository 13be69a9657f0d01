package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"ton_miner/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const redisPrefix = "ton_miner:"

// RedisRepository stores documents as plain string values.
// Withdrawals live in per-id keys plus a sorted set scored by creation time.
type RedisRepository struct {
	rdb *redis.Client
}

func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

func docKey(key string) string { return redisPrefix + "doc:" + key }
func codeKey(code string) string { return redisPrefix + "ref:" + strings.ToUpper(code) }
func codeOwnerKey(userID int64) string {
	return redisPrefix + "ref_owner:" + strconv.FormatInt(userID, 10)
}
func withdrawalKey(id string) string { return redisPrefix + "wd:" + id }
func withdrawalSetKey() string { return redisPrefix + "wd_by_created" }

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, docKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *RedisRepository) Put(ctx context.Context, key string, payload []byte) error {
	return r.rdb.Set(ctx, docKey(key), payload, 0).Err()
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, docKey(key)).Err()
}

func (r *RedisRepository) ClaimReferralCode(ctx context.Context, code string, userID int64) error {
	ok, err := r.rdb.SetNX(ctx, codeKey(code), userID, 0).Result()
	if err != nil {
		return err
	}
	if ok {
		// the first code stays the user's code
		return r.rdb.SetNX(ctx, codeOwnerKey(userID), strings.ToUpper(code), 0).Err()
	}
	owner, err := r.ResolveReferralCode(ctx, code)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrCodeTaken
	}
	return nil
}

func (r *RedisRepository) ResolveReferralCode(ctx context.Context, code string) (int64, error) {
	id, err := r.rdb.Get(ctx, codeKey(code)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	return id, err
}

func (r *RedisRepository) ReferralCodeFor(ctx context.Context, userID int64) (string, error) {
	code, err := r.rdb.Get(ctx, codeOwnerKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return code, err
}

func (r *RedisRepository) IndexWithdrawal(ctx context.Context, ref WithdrawalRef) error {
	b, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, withdrawalKey(ref.ID), b, 0)
	pipe.ZAdd(ctx, withdrawalSetKey(), redis.Z{Score: float64(ref.CreatedAt.UnixMilli()), Member: ref.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepository) FindWithdrawal(ctx context.Context, id string) (WithdrawalRef, error) {
	b, err := r.rdb.Get(ctx, withdrawalKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return WithdrawalRef{}, ErrNotFound
	}
	if err != nil {
		return WithdrawalRef{}, err
	}
	var ref WithdrawalRef
	err = json.Unmarshal(b, &ref)
	return ref, err
}

func (r *RedisRepository) ListWithdrawals(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]WithdrawalRef, error) {
	limit = clampLimit(limit)
	out := make([]WithdrawalRef, 0)

	// page through the sorted set newest first until limit matching refs are found
	const page = 200
	for start := int64(0); len(out) < limit; start += page {
		ids, err := r.rdb.ZRevRange(ctx, withdrawalSetKey(), start, start+page-1).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			break
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = withdrawalKey(id)
		}
		vals, err := r.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}

		for _, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var ref WithdrawalRef
			if err := json.Unmarshal([]byte(s), &ref); err != nil {
				continue
			}
			if status != "" && ref.Status != status {
				continue
			}
			out = append(out, ref)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
