// Entry point: wires configuration, stores, gateway, services, the
// background reaper and the HTTP server together.
package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking-core/internal/config"
	"github.com/iliyamo/movie-booking-core/internal/database"
	"github.com/iliyamo/movie-booking-core/internal/gateway"
	"github.com/iliyamo/movie-booking-core/internal/handler"
	"github.com/iliyamo/movie-booking-core/internal/queue"
	"github.com/iliyamo/movie-booking-core/internal/repository"
	"github.com/iliyamo/movie-booking-core/internal/router"
	"github.com/iliyamo/movie-booking-core/internal/service"
	"github.com/iliyamo/movie-booking-core/internal/worker"
)

func main() {
	// Load .env when present; real deployments set env vars directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		// Seat locking cannot degrade gracefully without Redis.
		log.Fatal("redis: connection failed")
	}
	defer rdb.Close()

	// Repositories.
	bookings := repository.NewBookingRepo(db)
	txns := repository.NewTransactionRepo(db)
	showtimes := repository.NewShowtimeRepo(db)
	locks := repository.NewSeatLockRepo(rdb, cfg.ReservationTimeout)
	avail := repository.NewAvailabilityRepo(rdb, bookings, showtimes, cfg.AvailabilityTTL, cfg.LayoutTTL)

	// Payment gateway: deterministic mock unless real credentials are
	// configured and GATEWAY_MODE says so.
	var gw gateway.Gateway
	if cfg.GatewayMock {
		gw = gateway.NewMock()
		log.Printf("[GATEWAY] running in mock mode")
	} else {
		gw = gateway.NewRazorpay(cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayWebhookKey,
			nil, gateway.DefaultRetryPolicy())
		log.Printf("[GATEWAY] running against %s", gw.Name())
	}

	// Services.
	events := queue.NewPublisher("")
	seatMgr := service.NewSeatManager(locks, avail)
	bookingSvc := service.NewBookingService(bookings, txns, showtimes, locks, avail, gw, events, cfg.ReservationTimeout)

	// Expiry reaper: the safety net that reclaims seats from bookings
	// whose payment window lapsed.
	listExpired := func(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
		rows, err := bookings.ListExpiredPending(ctx, now, limit)
		if err != nil {
			return nil, err
		}
		ids := make([]uint64, 0, len(rows))
		for _, b := range rows {
			ids = append(ids, b.ID)
		}
		return ids, nil
	}
	reaper := worker.NewReaper(bookingSvc, listExpired, locks, cfg.ReaperInterval)
	reaper.Start()
	defer reaper.Stop()

	// Event consumer: writes lifecycle events to logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking-consumer: %v", err)
		}
	}()

	// HTTP server.
	e := echo.New()
	e.HideBanner = true
	router.RegisterHealth(e, handler.NewHealthHandler(db, rdb))
	router.RegisterSeats(e, handler.NewSeatHandler(seatMgr), cfg.JWTSecret)
	router.RegisterBookings(e, handler.NewBookingHandler(bookingSvc), cfg.JWTSecret)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(bookingSvc, gw))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
