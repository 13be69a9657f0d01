package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ton_miner/internal/domain"
)

// MemoryRepository keeps everything in process memory. Used by tests and DEV_MODE.
type MemoryRepository struct {
	mu          sync.RWMutex
	docs        map[string][]byte
	codes       map[string]int64
	owners      map[int64]string
	referrals   map[int64]domain.Referral
	withdrawals map[string]WithdrawalRef
	audit       []domain.AuditLog
	auditSeq    int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:        make(map[string][]byte),
		codes:       make(map[string]int64),
		owners:      make(map[int64]string),
		referrals:   make(map[int64]domain.Referral),
		withdrawals: make(map[string]WithdrawalRef),
	}
}

func (r *MemoryRepository) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *MemoryRepository) Put(_ context.Context, key string, payload []byte) error {
	b := make([]byte, len(payload))
	copy(b, payload)
	r.mu.Lock()
	r.docs[key] = b
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.docs, key)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) ClaimReferralCode(_ context.Context, code string, userID int64) error {
	code = strings.ToUpper(code)
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.codes[code]; ok && owner != userID {
		return ErrCodeTaken
	}
	r.codes[code] = userID
	if _, ok := r.owners[userID]; !ok {
		r.owners[userID] = code
	}
	return nil
}

func (r *MemoryRepository) ReferralCodeFor(_ context.Context, userID int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.owners[userID]
	if !ok {
		return "", ErrNotFound
	}
	return code, nil
}

func (r *MemoryRepository) ResolveReferralCode(_ context.Context, code string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[strings.ToUpper(code)]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (r *MemoryRepository) IndexWithdrawal(_ context.Context, ref WithdrawalRef) error {
	r.mu.Lock()
	r.withdrawals[ref.ID] = ref
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) FindWithdrawal(_ context.Context, id string) (WithdrawalRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.withdrawals[id]
	if !ok {
		return WithdrawalRef{}, ErrNotFound
	}
	return ref, nil
}

func (r *MemoryRepository) ListWithdrawals(_ context.Context, status domain.WithdrawalStatus, limit int) ([]WithdrawalRef, error) {
	r.mu.RLock()
	out := make([]WithdrawalRef, 0, len(r.withdrawals))
	for _, ref := range r.withdrawals {
		if status == "" || ref.Status == status {
			out = append(out, ref)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
