package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	authsvc "campus-market/internal/application/auth"
	convsvc "campus-market/internal/application/conversations"
	"campus-market/internal/application/emails"
	listsvc "campus-market/internal/application/listings"
	prefsvc "campus-market/internal/application/preferences"
	profilesvc "campus-market/internal/application/profiles"
	ratingsvc "campus-market/internal/application/ratings"
	uploadsvc "campus-market/internal/application/uploads"
	"campus-market/internal/config"
	"campus-market/internal/infrastructure/database"
	"campus-market/internal/infrastructure/realtime"
	"campus-market/internal/infrastructure/storage"
	authhandler "campus-market/internal/interfaces/handlers/auth"
	convhandler "campus-market/internal/interfaces/handlers/conversations"
	healthhandler "campus-market/internal/interfaces/handlers/health"
	listhandler "campus-market/internal/interfaces/handlers/listings"
	prefhandler "campus-market/internal/interfaces/handlers/preferences"
	profilehandler "campus-market/internal/interfaces/handlers/profiles"
	ratinghandler "campus-market/internal/interfaces/handlers/ratings"
	uploadhandler "campus-market/internal/interfaces/handlers/uploads"
	gateway "campus-market/internal/interfaces/realtime"
	"campus-market/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Server bundles the Fiber API, the realtime gateway and the connections they share.
type Server struct {
	App     *fiber.App
	Gateway *gateway.Gateway
	DB      *gorm.DB
	Rdb     *redis.Client
}

// CreateApp opens Postgres, Redis and the object store named by cfg, then builds the server.
func CreateApp(cfg *config.Config) (*Server, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database url is not set")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is not set")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.RunMigrations {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		log.Info().Msg("migrations applied")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	return Build(cfg, db, rdb, store), nil
}

func newStore(cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageProvider {
	case "minio":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		}, cfg.ListingImagesBucket, cfg.MessageImagesBucket)
	case "supabase", "":
		return &storage.SupabaseClient{BaseURL: cfg.SupabaseURL, SecretKey: cfg.SupabaseSecretKey}, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}

// Build wires services, middleware and routes on already opened connections.
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, store storage.ObjectStore) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               25 * 1024 * 1024,
	})

	corsCfg := middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}
	sessionCfg := middleware.SessionConfig{
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.CORS(corsCfg))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Session(rdb))

	profiles := &profilesvc.Service{DB: db}
	conversations := &convsvc.Service{
		DB:       db,
		Profiles: profiles,
		Store:    store,
		Bucket:   cfg.MessageImagesBucket,
		Broker:   &realtime.RedisBroker{Rdb: rdb},
	}
	tickets := &authsvc.Tickets{Secret: []byte(cfg.RealtimeSecret)}
	gw := &gateway.Gateway{
		Conversations: conversations,
		Tickets:       tickets,
		OriginAllowed: corsCfg.OriginAllowed,
	}

	hh := &healthhandler.Handlers{Rdb: rdb, Conns: gw, HealthAdminKey: cfg.HealthAdminKey}
	if sqlDB, err := db.DB(); err == nil {
		hh.DB = sqlDB
	}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/reset", hh.Reset)
	app.Get("/health/errors", hh.Errors)

	v1 := app.Group("/api/v1")
	auth := middleware.RequireAuth()

	ah := &authhandler.Handlers{
		Service: &authsvc.Service{DB: db},
		Tickets: tickets,
		Rdb:     rdb,
		Config:  sessionCfg,
	}
	if cfg.BrevoAPIKey != "" {
		ah.Mailer = &emails.BrevoClient{APIKey: cfg.BrevoAPIKey, MailFrom: cfg.MailFrom}
	}
	ag := v1.Group("/auth")
	ag.Post("/sign-up", ah.SignUp)
	ag.Post("/sign-in", ah.SignIn)
	ag.Get("/session", ah.Session)
	ag.Delete("/sign-out", ah.SignOut)
	ag.Delete("/sessions", auth, ah.SignOutEverywhere)
	v1.Get("/realtime/ticket", auth, ah.RealtimeTicket)

	ph := &profilehandler.Handlers{Service: profiles}
	v1.Get("/profiles/:id", ph.GetProfile)
	v1.Patch("/profiles/me", auth, ph.UpdateMe)

	lh := &listhandler.Handlers{Service: &listsvc.Service{DB: db, Store: store, Bucket: cfg.ListingImagesBucket}}
	lg := v1.Group("/listings")
	lg.Get("/", lh.GetListings)
	lg.Get("/mine", auth, lh.GetMine)
	lg.Get("/:id", lh.GetListing)
	lg.Post("/", auth, lh.CreateListing)
	lg.Patch("/:id", auth, lh.UpdateListing)
	lg.Delete("/:id", auth, lh.DeleteListing)

	uh := &uploadhandler.Handlers{
		Service:             &uploadsvc.Service{Store: store},
		ListingImagesBucket: cfg.ListingImagesBucket,
		MessageImagesBucket: cfg.MessageImagesBucket,
	}
	ug := v1.Group("/uploads", auth)
	ug.Post("/listing-image", uh.ListingImage)
	ug.Post("/message-image", uh.MessageImage)

	ch := &convhandler.Handlers{Service: conversations}
	cg := v1.Group("/conversations", auth)
	cg.Post("/", ch.Create)
	cg.Get("/", ch.List)
	cg.Get("/:id", ch.Get)
	cg.Post("/:id/messages", ch.SendMessage)

	rh := &ratinghandler.Handlers{Service: &ratingsvc.Service{DB: db}}
	rg := v1.Group("/ratings")
	rg.Get("/:seller_id", rh.Summary)
	rg.Get("/:seller_id/mine", auth, rh.Mine)
	rg.Put("/:seller_id", auth, rh.Submit)

	prh := &prefhandler.Handlers{Service: &prefsvc.Service{Rdb: rdb}}
	pg := v1.Group("/preferences", auth)
	pg.Get("/favorites", prh.Favorites)
	pg.Post("/favorites", prh.AddFavorite)
	pg.Delete("/favorites/:listing_id", prh.RemoveFavorite)
	pg.Get("/language", prh.Language)
	pg.Put("/language", prh.SetLanguage)

	return &Server{App: app, Gateway: gw, DB: db, Rdb: rdb}
}

// RealtimeServer returns the listener serving the websocket gateway on addr.
func (s *Server) RealtimeServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
