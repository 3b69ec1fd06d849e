package repository

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-booking/internal/common/clock"
	"github.com/uma-arai/sbcntr-booking/internal/common/config"
	"github.com/uma-arai/sbcntr-booking/internal/common/database"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBookingStore は設定に応じたBookingStoreを作成します
// 返されたio.Closerは利用終了時に必ず閉じてください
func OpenBookingStore(cfg *config.Config) (BookingStore, io.Closer, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.NewDB(cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().Str("host", cfg.DB.Host).Str("dbname", cfg.DB.DBName).Msg("using postgres booking store")
		return NewPostgresBookingStore(NewDB(db.DB)), db, nil
	case config.StoreREST:
		log.Info().Str("url", cfg.REST.URL).Msg("using rest booking store")
		return NewRestBookingStore(cfg.REST, nil), nopCloser{}, nil
	case config.StoreMemory:
		log.Info().Msg("using in-memory booking store with sample data")
		return NewMemoryBookingStore(SampleBookings(clock.System{})...), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStore, cfg.Store)
	}
}
