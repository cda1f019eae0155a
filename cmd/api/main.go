//	@title			Asset Storage API
//	@version		1.0
//	@description	Upload, list, download and delete images, integer-array datasets and 3D models on local or S3-compatible storage.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/TryOnTech0/server-api/internal/asset"
	"github.com/TryOnTech0/server-api/internal/auth"
	"github.com/TryOnTech0/server-api/internal/cache"
	"github.com/TryOnTech0/server-api/internal/config"
	"github.com/TryOnTech0/server-api/internal/db"
	appMiddleware "github.com/TryOnTech0/server-api/internal/middleware"
	"github.com/TryOnTech0/server-api/internal/response"
	"github.com/TryOnTech0/server-api/internal/storage"
	"github.com/TryOnTech0/server-api/internal/user"

	_ "github.com/TryOnTech0/server-api/docs/swagger"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	redis := cache.New(cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		log.Printf("redis unavailable, authenticated requests will be rejected until it recovers: %v", err)
	}

	local, err := storage.NewLocalStorage(ctx, cfg.UploadDir, cfg.UploadPublicPath)
	if err != nil {
		log.Fatalf("local storage init failed: %v", err)
	}

	var remote *storage.MinioStorage
	if cfg.StorageEndpoint != "" {
		remote, err = storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
		})
		if err != nil {
			log.Fatalf("object storage init failed: %v", err)
		}
	}

	defaultStorage, err := storage.ParseKind(cfg.DefaultStorage, storage.KindRemote)
	if err != nil {
		log.Fatalf("invalid DEFAULT_STORAGE: %v", err)
	}
	if defaultStorage == storage.KindRemote && remote == nil {
		log.Println("object storage not configured, defaulting uploads to local storage")
		defaultStorage = storage.KindLocal
	}

	backends := storage.NewRegistry(local)
	if remote != nil {
		backends = storage.NewRegistry(local, remote)
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	blacklist := auth.NewBlacklist(redis, "jti:")
	authSvc := auth.NewService(
		auth.NewRepository(pool),
		userSvc,
		auth.NewHasher(nil),
		auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		blacklist,
	)
	authHandler := auth.NewHandler(authSvc)
	authn := appMiddleware.NewAuthenticator(cfg.JWTSecret, blacklist)

	assetRepo := asset.NewRepository(pool)
	resolver := asset.NewResolver(backends)
	assetSvc := asset.NewService(
		assetRepo,
		asset.NewPipeline(backends, assetRepo, defaultStorage),
		asset.NewDispatcher(assetRepo, resolver, backends),
		resolver,
	)

	var writeGuard func(http.Handler) http.Handler
	if cfg.AuthRequired {
		writeGuard = authn.RequireAuth
	}

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length"},
		MaxAge:         300,
	}))

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Readiness: every dependency must answer
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]func(context.Context) error{
			"database": pool.Ping,
			"redis":    redis.Ping,
		}
		if remote != nil {
			checks["object storage"] = remote.Ping
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Printf("ready: %s check failed: %v", name, err)
				response.ServiceUnavailable(w, name+" unavailable")
				return
			}
		}
		response.Success(w)
	})

	// Locally stored files
	r.Handle(cfg.UploadPublicPath+"/*",
		http.StripPrefix(cfg.UploadPublicPath, http.FileServer(http.Dir(local.Root()))))

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(authn.RequireAuth).Post("/logout", authHandler.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/username-check", userHandler.CheckUsername)
			r.With(authn.RequireAuth).Get("/me", userHandler.GetMe)
		})

		// Assets: anyone may read; writes may require a token (AUTH_REQUIRED)
		r.Group(func(r chi.Router) {
			r.Use(authn.OptionalAuth)
			prod := cfg.IsProduction()
			r.Mount("/images", asset.NewHandler(assetSvc, asset.KindImage, cfg.MaxUploadBytes, prod).Routes(writeGuard))
			r.Mount("/int-arrays", asset.NewHandler(assetSvc, asset.KindIntArray, cfg.MaxUploadBytes, prod).Routes(writeGuard))
			r.Mount("/models", asset.NewHandler(assetSvc, asset.KindMesh, cfg.MaxUploadBytes, prod).Routes(writeGuard))
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s, default storage=%s)", cfg.Port, cfg.AppEnv, defaultStorage)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
