package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/remiPra/chemins-essentiels-admin/editor"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/content"
	mediaapi "github.com/remiPra/chemins-essentiels-admin/handlers/api/media"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/pages"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/posts"
	"github.com/remiPra/chemins-essentiels-admin/handlers/api/sessions"
	"github.com/remiPra/chemins-essentiels-admin/handlers/auth"
	"github.com/remiPra/chemins-essentiels-admin/handlers/websocket"
	"github.com/remiPra/chemins-essentiels-admin/locks"
	"github.com/remiPra/chemins-essentiels-admin/media"
	authMiddleware "github.com/remiPra/chemins-essentiels-admin/middleware"
	"github.com/remiPra/chemins-essentiels-admin/render"
	"github.com/remiPra/chemins-essentiels-admin/stores"
	"github.com/sirupsen/logrus"
)

const sweepSchedule = "@every 5m"

func setupRouter(store stores.Store, reg *editor.Registry, host media.Host) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	renderer := render.NewRenderer(store)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)

		r.Route("/pages/{pageId}", func(r chi.Router) {
			r.Get("/", pages.HandleGetView(renderer))
			r.Get("/html", pages.HandleRenderHTML(renderer))
			r.Post("/sessions", sessions.HandleOpen(reg))
		})

		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Get("/", sessions.HandleGet(reg))
			r.Delete("/", sessions.HandleDiscard(reg))
			r.Post("/blocks", sessions.HandleAddBlock(reg))
			r.Route("/blocks/{blockId}", func(r chi.Router) {
				r.Patch("/", sessions.HandleEditBlock(reg))
				r.Delete("/", sessions.HandleDeleteBlock(reg))
				r.Post("/move", sessions.HandleMoveBlock(reg))
				r.Post("/image", sessions.HandleSelectImage(reg, store))
			})
			r.Post("/reorder", sessions.HandleReorder(reg))
			r.Post("/save", sessions.HandleSave(reg))
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", posts.HandleList(store))
			r.Post("/", posts.HandleCreate(store))
			r.Delete("/{id}", posts.HandleDelete(store))
		})

		r.Route("/content/homepage", func(r chi.Router) {
			r.Get("/", content.HandleGetHome(store))
			r.Put("/", content.HandlePutHome(store))
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/", mediaapi.HandleList(store))
			r.Post("/", mediaapi.HandleUpload(store, host))
			r.Delete("/{id}", mediaapi.HandleDelete(store))
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	return r
}

func waitForShutdown(srv *http.Server, reg *editor.Registry, notifier *websocket.Notifier) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("HTTP server did not shut down cleanly")
	}
	reg.Stop()
	notifier.Close()

	if n := reg.Len(); n > 0 {
		logrus.WithField("sessions", n).Warn("Unsaved editing sessions were dropped")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	store := stores.GetStore()
	locker := locks.GetLocker()
	host := media.GetHost()

	notifier := websocket.NewNotifier()
	reg := editor.NewRegistry(store, locker, notifier)
	if err := reg.StartSweeper(sweepSchedule, editor.IdleTimeout()); err != nil {
		logrus.Fatal(err)
	}

	r := setupRouter(store, reg, host)
	r.Mount("/socket.io/", notifier.Handler())

	srv := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv, reg, notifier)
}
