// Package wire assembles the HTTP surface: router, middleware chain and
// route registration per resource.
package wire

import (
	"net/http"

	"cinema-ticketing/internal/adaptor"
	mw "cinema-ticketing/pkg/middleware"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	Router *chi.Mux
}

type Wiring struct {
	handler *adaptor.Handler
	config  *utils.Config
	rdb     *redis.Client
	log     *zap.Logger
}

func NewWiring(handler *adaptor.Handler, config *utils.Config, rdb *redis.Client, log *zap.Logger) *Wiring {
	return &Wiring{
		handler: handler,
		config:  config,
		rdb:     rdb,
		log:     log,
	}
}

func (wr *Wiring) Build() *App {
	router := chi.NewRouter()

	router.Use(mw.Logger(wr.log))
	router.Use(mw.Recover(wr.log))
	router.Use(mw.CORS())

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.ResponseSuccess(w, "OK", nil)
	})

	wr.screeningRoutes(router)
	wr.bookingRoutes(router)
	wr.paymentRoutes(router)

	return &App{Router: router}
}

func (wr *Wiring) auth() func(http.Handler) http.Handler {
	return mw.AuthJWT(wr.config.JWT.Secret, wr.log)
}

func (wr *Wiring) admin() func(http.Handler) http.Handler {
	return mw.Admin(wr.log)
}
