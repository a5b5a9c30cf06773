package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TieredStore reads through a local store to a shared one. Failures of the
// shared tier are logged and treated as misses, so the cache degrades to
// local-only instead of failing requests.
type TieredStore struct {
	local  Store
	shared Store
	logger *zap.Logger
}

var _ Store = (*TieredStore)(nil)

// NewTieredStore combines a local and a shared store.
func NewTieredStore(local, shared Store, logger *zap.Logger) *TieredStore {
	return &TieredStore{local: local, shared: shared, logger: logger.Named("cache-tiered")}
}

func (s *TieredStore) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok, err := s.local.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}

	v, ok, err := s.shared.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Shared cache read failed; continuing without it", zap.Error(err))
		return "", false, nil
	}
	if !ok {
		return "", false, nil
	}

	// The shared tier does not report remaining TTL; keep a local copy for
	// a short while only.
	_ = s.local.Set(ctx, key, v, time.Minute)
	return v, true, nil
}

func (s *TieredStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := s.shared.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("Shared cache write failed; continuing without it", zap.Error(err))
	}
	return nil
}

func (s *TieredStore) Close() error {
	localErr := s.local.Close()
	sharedErr := s.shared.Close()
	if localErr != nil {
		return localErr
	}
	return sharedErr
}
