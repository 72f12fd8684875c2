package server

import (
	"context"
	"net/http"
	"sync"

	"letter-rush/internal/config"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

// Server holds every live session this process owns: the canonical
// store, the realtime hub, the round timers and the persistence
// connection. One Server is constructed per process.
type Server struct {
	store     *Store
	directory *playerDirectory
	db        *gorm.DB
	ws        *wsHub
	cfg       config.Config
	oracle    ScoreOracle
	clock     clockwork.Clock
	letters   []rune
	timersMu  sync.Mutex
	timers    map[string]*timerHandle
	reapStop  context.CancelFunc
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	return &Server{
		store:     NewStore(),
		directory: newPlayerDirectory(),
		db:        conn,
		ws:        newWSHub(),
		cfg:       cfg,
		oracle:    NewPrefixOracle(cfg.ScoreFullCredit),
		clock:     clockwork.NewRealClock(),
		letters:   validLetters(cfg.LetterExclusions),
		timers:    make(map[string]*timerHandle),
	}
}

// Start launches background work (the idle-session reaper).
func (s *Server) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.reapStop = cancel
	go s.runReaper(ctx)
}

// Shutdown drains the server: stops the reaper, cancels every round
// timer and closes all live connections.
func (s *Server) Shutdown() {
	if s.reapStop != nil {
		s.reapStop()
	}
	s.cancelAllTimers()
	s.ws.CloseAll()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/", s.handleSessionSubroutes)
	mux.HandleFunc("POST /api/sessions/", s.handleSessionSubroutes)
	mux.HandleFunc("GET /ws/sessions/", s.handleWebsocket)
	mux.Handle("/admin/api/", s.adminRouter())
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(mux)
}
