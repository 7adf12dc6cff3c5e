package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// DriverMemory selects the in-process MemoryStore.
const DriverMemory = "memory"

// Connection retry bounds used by Open.
var (
	connectInitialInterval = 250 * time.Millisecond //nolint:gochecknoglobals // overridden in tests
	connectMaxInterval     = 5 * time.Second        //nolint:gochecknoglobals // overridden in tests
)

// Open returns the store selected by driver. SQL stores are retried with
// exponential backoff, at most attempts times, while the database cannot be
// reached. Invalid drivers or DSNs fail on the first attempt.
func Open(ctx context.Context, driver, dsn string, attempts int, opts ...Option) (Store, error) {
	if driver == DriverMemory {
		return NewMemoryStore(opts...), nil
	}
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = connectInitialInterval
	exp.Multiplier = 2
	exp.MaxInterval = connectMaxInterval
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	var store *SQLStore
	err := backoff.Retry(func() error {
		s, err := OpenSQLStore(ctx, driver, dsn, opts...)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				return backoff.Permanent(err)
			}
			return err
		}
		store = s
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("connect %s store: %w", driver, err)
	}
	return store, nil
}
