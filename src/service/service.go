package service

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/peers"
	"github.com/mosaicnetworks/tally/src/wallet"
	"github.com/sirupsen/logrus"
)

// Node is what the HTTP API needs from a Tally node.
type Node interface {
	Self() peers.Peer
	Submit(tx *ledger.Transaction) error
	Balance(address string) uint64
	Transactions(address string, limit, offset int) ([]*ledger.Transaction, error)
	GetPeers() []peers.Peer
	GetStats() map[string]string
}

// Service is the HTTP API of a Tally node.
type Service struct {
	bindAddress string
	node        Node
	book        wallet.AddressBook
	logger      *logrus.Entry

	engine *gin.Engine
	server *http.Server
}

// NewService creates a Service and registers its handlers. Nothing is served
// until Serve is called.
func NewService(bindAddress string, n Node, book wallet.AddressBook, logger *logrus.Entry) *Service {
	gin.SetMode(gin.ReleaseMode)

	service := Service{
		bindAddress: bindAddress,
		node:        n,
		book:        book,
		logger:      logger,
		engine:      gin.New(),
	}

	service.registerHandlers()

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.engine,
	}

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Tally API handlers")

	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/ping", s.Ping)

	s.engine.POST("/generate", s.Generate)
	s.engine.POST("/address/import", s.ImportAddress)
	s.engine.POST("/address/remove", s.RemoveAddress)
	s.engine.GET("/address", s.ListAddresses)

	s.engine.GET("/balance", s.GetBalance)
	s.engine.GET("/transactions", s.GetTransactions)
	s.engine.POST("/transactions", s.PostTransaction)
	s.engine.POST("/submit", s.Submit)

	s.engine.GET("/peers", s.GetPeers)
	s.engine.GET("/stats", s.GetStats)
}

// requestLogger tags every request with an id and logs it once served.
func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Header("X-Request-Id", id)

		c.Next()

		s.logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("HTTP")
	}
}

// Handler returns the http.Handler of the API.
func (s *Service) Handler() http.Handler {
	return s.engine
}

// Serve listens on the bind address and serves the API until Shutdown. This is
// a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Tally API")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Shutdown stops the server, letting requests in progress finish within the
// context deadline.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
