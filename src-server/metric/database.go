package metric

import (
	"context"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func database(ctx context.Context, db Pinger) (time.Duration, error) {
	start := time.Now()
	if err := db.Ping(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
