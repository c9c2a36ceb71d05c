package main // Entry point package

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/ridehub/bus-booking/internal/booking"
	"github.com/ridehub/bus-booking/internal/config"
	"github.com/ridehub/bus-booking/internal/database"
	"github.com/ridehub/bus-booking/internal/event"
	"github.com/ridehub/bus-booking/internal/handler"
	"github.com/ridehub/bus-booking/internal/idempotency"
	"github.com/ridehub/bus-booking/internal/inventory"
	"github.com/ridehub/bus-booking/internal/notification"
	"github.com/ridehub/bus-booking/internal/pricing"
	"github.com/ridehub/bus-booking/internal/reaper"
	"github.com/ridehub/bus-booking/internal/repository"
	"github.com/ridehub/bus-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Redis backs the idempotency guard and the rate limiter.  Both degrade
	// when it is absent: the guard falls back to an in-process store and the
	// limiter becomes a pass-through.
	rdb := config.NewRedisClient()
	var idemStore idempotency.Store
	if rdb != nil {
		idemStore = idempotency.NewRedisStore(rdb)
	} else {
		log.Printf("main: redis unavailable, idempotency records kept in memory")
		idemStore = idempotency.NewMemoryStore()
	}
	guard := idempotency.NewGuard(idemStore, cfg.IdemRetention)

	seatRepo := repository.NewSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	scheduleRepo := repository.NewScheduleRepo(db)
	promoRepo := repository.NewPromotionRepo(db)

	inv := inventory.New(seatRepo)
	pricer := pricing.New(promoRepo)

	notifier, err := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatalf("telegram notifier: %v", err)
	}

	var pub event.Publisher = event.NopPublisher{}
	if cfg.AMQPURL != "" {
		pub = event.NewAMQPPublisher(cfg.AMQPURL)
	} else {
		log.Printf("main: RABBITMQ_URL not set, event publishing disabled")
	}

	saga := booking.New(bookingRepo, scheduleRepo, seatRepo, inv, guard, pricer, pub, notifier, cfg.HoldTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The reaper reclaims lapsed seat holds; the consumer feeds payment
	// results back into the saga.  Both run until shutdown.
	rp := reaper.New(inv, saga, cfg.ReaperInterval)
	go rp.Start(ctx)

	if cfg.AMQPURL != "" {
		evRouter := event.NewRouter(saga)
		go func() {
			if err := event.StartPaymentConsumer(ctx, cfg.AMQPURL, evRouter); err != nil && ctx.Err() == nil {
				log.Printf("main: payment consumer stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterBooking(e, handler.NewBookingHandler(saga), cfg.JWTSecret, rlCfg, rdb)

	// Stop accepting requests when the context is cancelled so in-flight
	// sagas get a clean shutdown before the process exits.
	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
