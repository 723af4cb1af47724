// Package api provides the optional read-only status API (spec SPEC_FULL
// 2.8): a snapshot of fleet-wide round progress for a dashboard or operator
// to poll or tail, backed by internal/registry. It never influences
// simulation outputs.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/registry"
	"github.com/bawdyanarchist/minesim/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the status API server.
type Server struct {
	cfg      *config.Config
	registry *registry.Registry
	router   *gin.Engine
	server   *http.Server

	clientsMu sync.Mutex
	clients   map[uint64]*wsClient
	clientSeq uint64

	quit chan struct{}
	wg   sync.WaitGroup
}

// wsClient is one connected dashboard socket.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// StatusResponse is the /status response: aggregate progress across every
// round the registry has seen so far.
type StatusResponse struct {
	Total   int   `json:"total"`
	Queued  int   `json:"queued"`
	Running int   `json:"running"`
	Done    int   `json:"done"`
	Partial int   `json:"partial"`
	Now     int64 `json:"now"`
}

// NewServer creates a new status API server backed by reg.
func NewServer(cfg *config.Config, reg *registry.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		registry: reg,
		router:   router,
		clients:  make(map[uint64]*wsClient),
		quit:     make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	s.router.GET("/status", s.handleStatus)
	s.router.GET("/rounds", s.handleRounds)
	s.router.GET("/rounds/:id", s.handleRound)
	s.router.GET("/rounds/:id/summary", s.handleRoundSummary)
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
}

// Start begins serving the API in the background.
func (s *Server) Start() error {
	s.server = &http.Server{Addr: s.cfg.API.Bind, Handler: s.router}

	telemetry.Log().Infof("status API listening on %s", s.cfg.API.Bind)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Log().Errorf("status API error: %v", err)
		}
	}()
	return nil
}

// Stop shuts down the API server and any open websocket connections.
func (s *Server) Stop() error {
	close(s.quit)

	s.clientsMu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clientsMu.Unlock()
	s.wg.Wait()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// handleStatus returns a tally of every round's lifecycle status.
func (s *Server) handleStatus(c *gin.Context) {
	resp := StatusResponse{Now: time.Now().Unix()}
	for _, state := range s.registry.All() {
		resp.Total++
		switch state.Status {
		case registry.StatusQueued:
			resp.Queued++
		case registry.StatusRunning:
			resp.Running++
		case registry.StatusDone:
			resp.Done++
		case registry.StatusPartial:
			resp.Partial++
		}
	}
	c.JSON(200, resp)
}

// handleRounds lists every round's current state.
func (s *Server) handleRounds(c *gin.Context) {
	c.JSON(200, gin.H{"rounds": s.registry.All()})
}

// handleRound returns one round's current state.
func (s *Server) handleRound(c *gin.Context) {
	id := c.Param("id")
	state, ok := s.registry.Get(id)
	if !ok {
		c.JSON(404, gin.H{"error": "round not found"})
		return
	}
	c.JSON(200, state)
}

// handleRoundSummary returns just a round's metrics summary, if computed.
func (s *Server) handleRoundSummary(c *gin.Context) {
	id := c.Param("id")
	state, ok := s.registry.Get(id)
	if !ok {
		c.JSON(404, gin.H{"error": "round not found"})
		return
	}
	if state.Summary == nil {
		c.JSON(404, gin.H{"error": "round has no summary yet"})
		return
	}
	c.JSON(200, state.Summary)
}

// handleWebSocket upgrades to a socket that receives one JSON line per
// completed round, for a dashboard to tail a long sweep live.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Log().Warnf("websocket upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	s.clientsMu.Lock()
	s.clientSeq++
	id := s.clientSeq
	s.clients[id] = client
	s.clientsMu.Unlock()

	s.wg.Add(1)
	go s.drainClient(id, client)
}

// drainClient reads (and discards) frames from a dashboard socket until it
// disconnects, so the server's read buffer doesn't fill; the socket is
// otherwise write-only from the server's side.
func (s *Server) drainClient(id uint64, client *wsClient) {
	defer s.wg.Done()
	defer func() {
		client.conn.Close()
		s.clientsMu.Lock()
		delete(s.clients, id)
		s.clientsMu.Unlock()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// BroadcastRound pushes a completed round's state to every connected
// dashboard socket.
func (s *Server) BroadcastRound(state registry.RoundState) {
	payload, err := json.Marshal(state)
	if err != nil {
		telemetry.Log().Warnf("marshal round state for broadcast: %v", err)
		return
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, client := range s.clients {
		client.writeMu.Lock()
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		err := client.conn.WriteMessage(websocket.TextMessage, payload)
		client.writeMu.Unlock()
		if err != nil {
			telemetry.Log().Debugf("websocket write error: %v", err)
		}
	}
}
