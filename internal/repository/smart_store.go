package repository

import (
	"context"
	"log"
	"sort"
)

// SmartStore reads from primary and falls back to secondary; writes go to both.
// It holds its delegates rather than being one of them.
type SmartStore struct {
	primary   Store
	secondary Store
	logger    *log.Logger
}

func NewSmartStore(primary, secondary Store, logger *log.Logger) *SmartStore {
	if logger == nil {
		logger = log.Default()
	}
	return &SmartStore{primary: primary, secondary: secondary, logger: logger}
}

func (s *SmartStore) Load(ctx context.Context, key string) (string, bool, error) {
	v, ok, perr := s.primary.Load(ctx, key)
	if perr == nil && ok {
		return v, true, nil
	}

	v2, ok2, serr := s.secondary.Load(ctx, key)
	switch {
	case serr == nil && ok2:
		if perr == nil {
			if err := s.primary.Save(ctx, key, v2); err != nil {
				s.logger.Printf("smart store backfill %s: %v", key, err)
			}
		}
		return v2, true, nil
	case perr != nil && serr != nil:
		return "", false, perr
	default:
		return "", false, nil
	}
}

// Save succeeds when at least one delegate accepted the write.
func (s *SmartStore) Save(ctx context.Context, key, value string) error {
	perr := s.primary.Save(ctx, key, value)
	serr := s.secondary.Save(ctx, key, value)
	switch {
	case perr != nil && serr != nil:
		return perr
	case perr != nil:
		s.logger.Printf("smart store primary save %s: %v", key, perr)
	case serr != nil:
		s.logger.Printf("smart store secondary save %s: %v", key, serr)
	}
	return nil
}

func (s *SmartStore) ListAll(ctx context.Context) ([]string, error) {
	pkeys, perr := s.primary.ListAll(ctx)
	skeys, serr := s.secondary.ListAll(ctx)
	if perr != nil && serr != nil {
		return nil, perr
	}

	seen := make(map[string]struct{}, len(pkeys)+len(skeys))
	var keys []string
	for _, k := range append(pkeys, skeys...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
