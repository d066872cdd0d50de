package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/inkwell-blog/inkwell-api/internal/auth"
	"github.com/inkwell-blog/inkwell-api/internal/config"
	"github.com/inkwell-blog/inkwell-api/internal/db"
	"github.com/inkwell-blog/inkwell-api/internal/handlers"
	appmiddleware "github.com/inkwell-blog/inkwell-api/internal/middleware"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	if cfg.Production() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetLevel(logrus.DebugLevel)
		handlers.Debug = true
	}

	ctx := context.Background()
	store, err := db.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(shutdownCtx)
	}()

	if err := store.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to ensure indexes")
	}

	roles := auth.NewAPIRoleResolver(cfg.IdPAPIURL, cfg.IdPSecretKey, log)

	postsHandler := handlers.NewPostsHandler(store, roles, log)
	commentsHandler := handlers.NewCommentsHandler(store, roles, log)
	seriesHandler := handlers.NewSeriesHandler(store, roles, log)
	draftsHandler := handlers.NewDraftsHandler(store, roles, log)
	usersHandler := handlers.NewUsersHandler(store, log)
	uploadHandler := handlers.NewUploadHandler(cfg.IKPublicKey, cfg.IKPrivateKey, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	r.Get("/health", handlers.Health)

	// Webhooks verify their own signature over the raw body and stay
	// outside the bearer-token middleware.
	if cfg.WebhookSecret != "" {
		verifier, err := svix.NewWebhook(cfg.WebhookSecret)
		if err != nil {
			log.WithError(err).Fatal("invalid webhook secret")
		}
		webhooksHandler := handlers.NewWebhooksHandler(store, verifier, log)
		webhookLimiter := appmiddleware.NewRateLimiter(60, time.Minute)
		r.With(webhookLimiter.Limit).Post("/webhooks", webhooksHandler.Handle)
	} else {
		log.Warn("WEBHOOK_SECRET not set, webhook endpoint disabled")
	}

	r.Get("/posts/upload-auth", uploadHandler.Auth)

	commentLimiter := appmiddleware.NewRateLimiter(30, time.Minute)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware([]byte(cfg.AuthSecret)))

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postsHandler.List)
			r.Post("/", postsHandler.Create)
			r.Patch("/feature", postsHandler.Feature)
			r.Patch("/clap/{id}", postsHandler.Clap)
			r.Put("/{id}", postsHandler.Update)
			r.Delete("/{id}", postsHandler.Delete)
			// Slug route last: it catches every other GET under /posts.
			r.With(postsHandler.CountVisit).Get("/{slug}", postsHandler.GetBySlug)
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/{postId}", commentsHandler.List)
			r.With(commentLimiter.Limit).Post("/{postId}", commentsHandler.Add)
			r.Delete("/{id}", commentsHandler.Delete)
			r.Patch("/{id}/react", commentsHandler.React)
		})

		r.Route("/series", func(r chi.Router) {
			r.Get("/", seriesHandler.List)
			r.Post("/", seriesHandler.Create)
			r.Put("/{id}", seriesHandler.Update)
			r.Delete("/{id}", seriesHandler.Delete)
			r.Get("/id/{id}", seriesHandler.GetByID)
			r.Get("/{slug}", seriesHandler.GetBySlug)
		})

		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", draftsHandler.List)
			r.Post("/", draftsHandler.Create)
			r.Get("/{id}", draftsHandler.Get)
			r.Put("/{id}", draftsHandler.Update)
			r.Delete("/{id}", draftsHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/saved", usersHandler.SavedPosts)
			r.Patch("/save", usersHandler.Save)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
