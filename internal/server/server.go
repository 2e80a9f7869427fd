// Package server exposes the consumer boundary over HTTP.
package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/sidhantk/txnrelay/internal/dispatch"
	"github.com/sidhantk/txnrelay/pkg/api"
	"github.com/sidhantk/txnrelay/pkg/live"
	"github.com/sidhantk/txnrelay/pkg/parser"
)

// Server is the HTTP surface of the daemon: the message-ingest boundary on
// one side and the consumer-facing drain API on the other.
type Server struct {
	app        *fiber.App
	store      api.PendingStore
	dispatcher *dispatch.Dispatcher
	session    *live.Session
	perms      api.PermissionClient
	logger     *slog.Logger
}

// New builds the Fiber app and registers all routes.
func New(store api.PendingStore, dispatcher *dispatch.Dispatcher, session *live.Session, perms api.PermissionClient, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		app:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		store:      store,
		dispatcher: dispatcher,
		session:    session,
		perms:      perms,
		logger:     log,
	}

	s.app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	s.app.Use(logger.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	v1 := s.app.Group("/api/v1")
	v1.Get("/health", s.handleHealth)
	v1.Post("/messages", s.handleIngest)
	v1.Get("/transactions/pending", s.handleGetPending)
	v1.Delete("/transactions/pending", s.handleClearPending)
	v1.Post("/transactions/drain", s.handleDrain)
	v1.Post("/transactions", s.handleSave)
	v1.Post("/permissions/request", s.handleRequestPermission)

	return s
}

// App returns the underlying Fiber app, used by tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleIngest is the Message Source boundary. The collaborator fires and
// forgets; a message that parses is durably appended (and live-pushed) before
// the response is written, so a 202 means the record survives a crash.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	var raw api.RawMessage
	if err := c.BodyParser(&raw); err != nil {
		return s.writeError(c, api.SourceReadError("decoding message", err))
	}

	txn, err := s.dispatcher.Handle(c.UserContext(), raw)
	if err != nil {
		return s.writeError(c, err)
	}
	if txn == nil {
		// Not a transaction; a normal outcome, not an error.
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusAccepted).JSON(txn)
}

func (s *Server) handleGetPending(c *fiber.Ctx) error {
	txns, err := s.store.Pending(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": txns,
		"count":        len(txns),
	})
}

func (s *Server) handleClearPending(c *fiber.Ctx) error {
	if err := s.store.Clear(c.UserContext()); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"status": "cleared"})
}

func (s *Server) handleDrain(c *fiber.Ctx) error {
	txns, err := s.store.Drain(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": txns,
		"count":        len(txns),
	})
}

// handleSave lets the consumer push a manually entered or amended
// transaction into the same durable store. No live push happens here; the
// consumer already has the record.
func (s *Server) handleSave(c *fiber.Ctx) error {
	var txn api.Transaction
	if err := c.BodyParser(&txn); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid transaction payload",
		})
	}
	if txn.Amount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "amount must be non-negative",
		})
	}
	if txn.ID == 0 {
		txn.ID = parser.NextID()
	}

	inserted, err := s.store.Append(c.UserContext(), txn)
	if err != nil {
		return s.writeError(c, err)
	}
	if !inserted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a transaction with this id already exists",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(txn)
}

func (s *Server) handleRequestPermission(c *fiber.Ctx) error {
	granted, err := s.perms.RequestPermission(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"granted": granted})
}

// writeError maps the error taxonomy onto HTTP statuses and a tagged JSON
// body.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	kind := api.KindStorage

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		kind = apiErr.Kind
		switch apiErr.Kind {
		case api.KindPermissionDenied:
			status = fiber.StatusForbidden
		case api.KindSourceRead:
			status = fiber.StatusBadGateway
		case api.KindStorage:
			status = fiber.StatusInternalServerError
		}
	}

	s.logger.Error("request failed",
		"path", c.Path(),
		"kind", string(kind),
		"error", err,
	)

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
