package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ChangeChannel is the notification channel raised by the change-feed
// triggers. The payload is the name of the table that changed.
const ChangeChannel = "upkeep_changed"

const listenRetryDelay = 5 * time.Second

// Listen delivers change-feed notifications to onChange until ctx is
// cancelled. It holds a dedicated connection outside the pool and
// reconnects after connection errors.
func (db *DB) Listen(ctx context.Context, onChange func(table string)) error {
	for {
		err := db.listenOnce(ctx, onChange)
		if ctx.Err() != nil {
			return nil
		}
		db.logger.Warn("Change feed connection lost, reconnecting",
			zap.Duration("retry_in", listenRetryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-db.clock.After(listenRetryDelay):
		}
	}
}

func (db *DB) listenOnce(ctx context.Context, onChange func(table string)) error {
	conn, err := pgx.Connect(ctx, db.uri)
	if err != nil {
		return fmt.Errorf("failed to connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	db.logger.Info("Listening for data changes", zap.String("channel", ChangeChannel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		onChange(n.Payload)
	}
}
