package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scatch/auth"
	"scatch/cart"
	"scatch/config"
	"scatch/db"
	"scatch/feed"
	"scatch/globals"
	"scatch/middleware"
	"scatch/mq"
	"scatch/payments"
	"scatch/products"
	"scatch/ratelim"
	"scatch/rdx"
	"scatch/routes"
	"scatch/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// content sniffing, framing
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		// HSTS (must be on HTTPS)
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		// Referrer and permissions
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// handlers that serve cacheable content override this
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// loggingMiddleware tags each request with an id and logs method, path, status, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = utils.GetUUID()
		}
		w.Header().Set("X-Request-ID", reqID)
		r = r.WithContext(context.WithValue(r.Context(), globals.RequestIDKey, reqID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %s %d from %s – %v", reqID, r.Method, r.RequestURI, rec.status, r.RemoteAddr, time.Since(start))
	})
}

func setupRouter(d routes.Deps) *httprouter.Router {
	router := httprouter.New()
	routes.RoutesWrapper(router, d)
	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := db.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DB)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}

	redisClient, err := rdx.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	hub := feed.NewHub()
	go hub.Run()

	// without Redis: no logout revocation, no cross-instance sweep lock, events go straight to the hub
	var (
		revocations middleware.Revocations
		sweepLock   payments.Locker
		events      payments.EventPublisher = hub
	)
	if redisClient != nil {
		revocations = rdx.NewDenylist(redisClient)
		sweepLock = rdx.NewLocker(redisClient)
		events = mq.NewEmitter(redisClient)
		go mq.StartOrderEventWorker(ctx, redisClient, hub.Deliver)
	}

	users := db.NewUserStore(store.Users)
	owners := db.NewOwnerStore(store.Owners)
	productStore := db.NewProductStore(store.Products)
	orders := db.NewOrderStore(store.Orders)

	sessions := middleware.NewAuth(cfg.JWTKey, cfg.TokenTTL, revocations, cfg.IsProduction())
	valuator := cart.NewValuator(users, productStore, cfg.PlatformFee)

	paySvc := payments.NewService(payments.Deps{
		Valuator:  valuator,
		Owners:    owners,
		Orders:    orders,
		Carts:     users,
		Gateway:   payments.NewRazorpayGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret),
		Events:    events,
		KeySecret: cfg.Razorpay.KeySecret,
		Currency:  cfg.Currency,
	})

	sweeper := payments.NewSweeper(paySvc, sweepLock, cfg.CartSweepInterval)
	go sweeper.Run(ctx)

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.RunJanitor(ctx)

	router := setupRouter(routes.Deps{
		Auth:        sessions,
		Accounts:    auth.NewHandler(users, owners, sessions),
		Products:    products.NewHandler(productStore, owners),
		Cart:        cart.NewHandler(valuator, users, productStore),
		Payments:    payments.NewHandler(paySvc),
		Idempotency: db.NewIdempotencyStore(store.Idempotency),
		Hub:         hub,
		Origins:     cfg.CORSOrigins,
		RateLimiter: rateLimiter,
	})

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	// on shutdown: stop background work, close the feed hub
	server.RegisterOnShutdown(func() {
		log.Println("🛑 Shutting down feed hub and workers...")
		stop()
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	// wait for interrupt or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("❌ Mongo disconnect failed: %v", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("❌ Redis close failed: %v", err)
		}
	}

	log.Println("✅ Server stopped cleanly")
}
