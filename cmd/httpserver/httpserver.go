// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/minibank/ledger-api/internal/balancecache"
	"github.com/minibank/ledger-api/internal/domain"
	"github.com/minibank/ledger-api/internal/jobdelivery"
	"github.com/minibank/ledger-api/internal/jobqueue"
	"github.com/minibank/ledger-api/internal/middleware"
	"github.com/minibank/ledger-api/internal/recalcengine"
	"github.com/minibank/ledger-api/internal/transactiondelivery"
	"github.com/minibank/ledger-api/internal/transactionrepo"
	"github.com/minibank/ledger-api/internal/transactionservice"
	"github.com/minibank/ledger-api/pkg/configpkg"
)

// Server holds db connection, handlers router, background queue and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Queue  *jobqueue.Queue
	Cache  *balancecache.Cache
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	transactionRepo := transactionrepo.NewRepoPGS(conn)

	cache := balancecache.New(config.CacheCleanupInterval)
	queue := jobqueue.New(logger, config.QueueConcurrency, config.JobRetention)

	recalcEngine := recalcengine.New(transactionRepo, cache, config.BalanceCacheTTL)
	queue.Register(domain.JobTypeRecalculateBalances, recalcEngine.Handler())

	transactionService := transactionservice.New(transactionRepo, queue, cache, config.BalanceCacheTTL)

	transactionHandler := transactiondelivery.NewHandler(transactionService)
	jobHandler := jobdelivery.NewHandler(queue)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.GET("/transactions", transactionHandler.List)
	engine.GET("/transactions/:id", transactionHandler.Get)
	engine.PUT("/transactions/:id", transactionHandler.Edit)

	engine.GET("/jobs", jobHandler.List)
	engine.GET("/jobs/:id", jobHandler.Get)

	server := &Server{
		DB:     conn,
		Engine: engine,
		Queue:  queue,
		Cache:  cache,
		Config: config,
	}

	return server, nil
}
