package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"ton_miner/internal/domain"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ReferralRoster lists the friends each user invited. A referee is recorded once.
type ReferralRoster interface {
	AddReferral(ctx context.Context, ref domain.Referral) error
	// ListReferrals returns newest first
	ListReferrals(ctx context.Context, referrerID int64, limit int) ([]domain.Referral, error)
}

func (r *PostgresRepository) AddReferral(ctx context.Context, ref domain.Referral) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO referrals (referred_id, referrer_id, display_name, reward, joined_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (referred_id) DO NOTHING
	`, ref.UserID, ref.ReferrerID, ref.DisplayName, ref.Reward.String(), ref.JoinedAt)
	return err
}

func (r *PostgresRepository) ListReferrals(ctx context.Context, referrerID int64, limit int) ([]domain.Referral, error) {
	rows, err := r.db.Query(ctx, `
		SELECT referred_id, referrer_id, display_name, reward::text, joined_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY joined_at DESC, referred_id DESC
		LIMIT $2
	`, referrerID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Referral, 0)
	for rows.Next() {
		var (
			ref    domain.Referral
			reward string
		)
		if err := rows.Scan(&ref.UserID, &ref.ReferrerID, &ref.DisplayName, &reward, &ref.JoinedAt); err != nil {
			return nil, err
		}
		if ref.Reward, err = decimal.NewFromString(reward); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func referralsKey(referrerID int64) string {
	return redisPrefix + "referrals:" + strconv.FormatInt(referrerID, 10)
}

func referredKey(userID int64) string {
	return redisPrefix + "referred:" + strconv.FormatInt(userID, 10)
}

// AddReferral marks the referee first so a second call never lists them twice
func (r *RedisRepository) AddReferral(ctx context.Context, ref domain.Referral) error {
	ok, err := r.rdb.SetNX(ctx, referredKey(ref.UserID), ref.ReferrerID, 0).Result()
	if err != nil || !ok {
		return err
	}
	b, err := json.Marshal(redisReferral{Referral: ref, ReferrerID: ref.ReferrerID})
	if err != nil {
		return err
	}
	return r.rdb.ZAdd(ctx, referralsKey(ref.ReferrerID), redis.Z{
		Score:  float64(ref.JoinedAt.UnixMilli()),
		Member: b,
	}).Err()
}

func (r *RedisRepository) ListReferrals(ctx context.Context, referrerID int64, limit int) ([]domain.Referral, error) {
	vals, err := r.rdb.ZRevRange(ctx, referralsKey(referrerID), 0, int64(clampLimit(limit))-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Referral, 0, len(vals))
	for _, v := range vals {
		var ref redisReferral
		if err := json.Unmarshal([]byte(v), &ref); err != nil {
			continue
		}
		ref.Referral.ReferrerID = ref.ReferrerID
		out = append(out, ref.Referral)
	}
	return out, nil
}

// redisReferral keeps the referrer id, which the public JSON form leaves out
type redisReferral struct {
	domain.Referral
	ReferrerID int64 `json:"referrer_id"`
}

func (r *MemoryRepository) AddReferral(_ context.Context, ref domain.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.referrals[ref.UserID]; !ok {
		r.referrals[ref.UserID] = ref
	}
	return nil
}

func (r *MemoryRepository) ListReferrals(_ context.Context, referrerID int64, limit int) ([]domain.Referral, error) {
	r.mu.RLock()
	out := make([]domain.Referral, 0)
	for _, ref := range r.referrals {
		if ref.ReferrerID == referrerID {
			out = append(out, ref)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID > out[j].UserID
		}
		return out[i].JoinedAt.After(out[j].JoinedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
