package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"

	"chess-server/internal/database"
)

// Process-wide tunables. Tests shorten the Server copies of these.
const (
	DefaultDisconnectGrace = 60 * time.Second
	DefaultRoomTTL         = 5 * time.Minute
	DefaultPingInterval    = 30 * time.Second
	DefaultTimeControl     = "5+0"
)

type Server struct {
	port int
	db   database.Service

	connectionManager *ConnectionManager
	sessionRegistry   *SessionRegistry
	roomManager       *RoomManager
	matchmaker        *Matchmaker
	timers            *TimerService
	store             GameStore

	disconnectGrace    time.Duration
	roomTTL            time.Duration
	pingInterval       time.Duration
	defaultTimeControl string
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	// Initialize database
	dbService := database.New()

	// Run migrations
	if err := runMigrations(dbService.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	s := newServer(dbService.DB())
	s.port = port
	s.db = dbService

	// Declare Server config
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer
}

// newServer wires the live-session components around a database handle.
// Split from NewServer so tests can construct a Server on an in-memory store.
func newServer(db *sql.DB) *Server {
	s := &Server{
		connectionManager:  NewConnectionManager(),
		sessionRegistry:    NewSessionRegistry(),
		roomManager:        NewRoomManager(),
		timers:             NewTimerService(),
		store:              NewSQLGameStore(db),
		disconnectGrace:    DefaultDisconnectGrace,
		roomTTL:            DefaultRoomTTL,
		pingInterval:       DefaultPingInterval,
		defaultTimeControl: DefaultTimeControl,
	}

	// The matchmaker probes connection liveness and seating through the
	// registries rather than holding references of its own.
	s.matchmaker = NewMatchmaker(
		s.defaultTimeControl,
		s.connectionManager.IsCurrent,
		s.sessionRegistry.IsSeated,
	)

	return s
}

// runMigrations applies database migrations using goose
func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "./db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("Database migrations applied successfully")
	return nil
}

// Shutdown closes every live websocket and the database connection. Rooms
// are not persisted as snapshots: finished games are already in the store,
// and in-flight games are forfeit by deployment policy.
func (s *Server) Shutdown(ctx context.Context) error {
	s.connectionManager.CloseAll(websocket.StatusGoingAway, "Server shutting down")

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
