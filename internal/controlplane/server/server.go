// Package server exposes the HTTP+WebSocket control surface bots are
// created, started, and observed through (§4.10). Handlers only enqueue
// commands on a Session or call the Registry's CRUD methods; they never
// touch strategy state directly.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/betbot/gobet/internal/botsession"
	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/events"
	"github.com/betbot/gobet/internal/registry"
	"github.com/betbot/gobet/internal/settings"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/betbot/gobet/pkg/config"
	"github.com/betbot/gobet/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

var (
	errFull    = errors.New("server: bot command queue full")
	errTimeout = errors.New("server: bot command timed out")
)

// Config is the set of paths the server persists settings updates to.
type Config struct {
	SettingsPath string
}

// Server wires the registry into gin routes and a websocket hub.
type Server struct {
	cfg      Config
	reg      *registry.Registry
	settings *settings.Store
	kill     *settings.Killswitch
	upgrader websocket.Upgrader
}

func New(cfg Config, reg *registry.Registry, store *settings.Store, kill *settings.Killswitch) *Server {
	return &Server{
		cfg: cfg, reg: reg, settings: store, kill: kill,
		upgrader: websocket.Upgrader{
			ReadBufferSize: 1024, WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ws", s.handleWS)

	bots := r.Group("/bots")
	bots.GET("", s.handleBotsList)
	bots.POST("", s.handleBotsCreate)

	bot := bots.Group("/:id")
	bot.GET("", s.handleBotGet)
	bot.PUT("", s.handleBotUpdate)
	bot.DELETE("", s.handleBotDelete)
	bot.POST("/start", s.handleBotStart)
	bot.POST("/stop", s.handleBotStop)
	bot.POST("/pause", s.handleBotPause)
	bot.POST("/resume", s.handleBotResume)
	bot.POST("/trade", s.handleBotManualTrade)
	bot.POST("/close", s.handleBotClose)
	bot.GET("/activities", s.handleBotActivities)
	bot.GET("/chart-data", s.handleBotChartData)
	bot.GET("/orderbook", s.handleBotOrderBook)
	bot.GET("/target", s.handleBotTarget)
	bot.GET("/spike-status", s.handleBotSpikeStatus)

	r.GET("/settings", s.handleSettingsGet)
	r.POST("/settings", s.handleSettingsUpdate)
	r.GET("/profiles", s.handleProfiles)
	r.POST("/kill", s.handleKill)

	return r
}

func writeErr(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) handleBotsList(c *gin.Context) {
	sessions := s.reg.List()
	out := make([]botSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summarize(sess))
	}
	c.JSON(http.StatusOK, out)
}

type botSummary struct {
	ID         string                  `json:"id"`
	Name       string                  `json:"name"`
	Status     domain.BotStatus        `json:"status"`
	Position   *domain.Position        `json:"position"`
	Target     *domain.Target          `json:"target"`
	Settlement domain.SettlementRecord `json:"settlement"`
}

func summarize(sess *botsession.Session) botSummary {
	cfg := sess.Config()
	return botSummary{
		ID: cfg.ID, Name: cfg.Name, Status: sess.Status(),
		Position: sess.Position(), Target: sess.Target(), Settlement: sess.Settlement(),
	}
}

func (s *Server) handleBotsCreate(c *gin.Context) {
	var cfg domain.BotConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := s.reg.Create(cfg); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": cfg.ID})
}

func (s *Server) getSession(c *gin.Context) (*botsession.Session, bool) {
	sess, ok := s.reg.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
	}
	return sess, ok
}

func (s *Server) handleBotGet(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, summarize(sess))
}

func (s *Server) handleBotUpdate(c *gin.Context) {
	var cfg domain.BotConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	cfg.ID = c.Param("id")
	if err := s.reg.Update(cfg); err != nil {
		writeErr(c, http.StatusConflict, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBotDelete(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := s.reg.Delete(c.Param("id"), force); err != nil {
		writeErr(c, http.StatusConflict, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBotStart(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	if err := sess.Start(context.Background()); err != nil {
		writeErr(c, http.StatusConflict, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) enqueueAndWait(c *gin.Context, sess *botsession.Session, cmd botsession.Command) {
	reply := make(chan error, 1)
	cmd.Reply = reply
	if !sess.Enqueue(cmd) {
		writeErr(c, http.StatusServiceUnavailable, errFull)
		return
	}
	select {
	case err := <-reply:
		if err != nil {
			writeErr(c, http.StatusInternalServerError, err)
			return
		}
	case <-time.After(10 * time.Second):
		writeErr(c, http.StatusGatewayTimeout, errTimeout)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBotStop(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	sess.Stop()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBotPause(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	s.enqueueAndWait(c, sess, botsession.Command{Kind: botsession.CmdPause})
}

func (s *Server) handleBotResume(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	s.enqueueAndWait(c, sess, botsession.Command{Kind: botsession.CmdResume})
}

type manualTradeRequest struct {
	Side       domain.Side     `json:"side"`
	AmountUSD  decimal.Decimal `json:"amount_usd"`
	LimitPrice decimal.Decimal `json:"limit_price"`
}

func (s *Server) handleBotManualTrade(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	var req manualTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	cfg := sess.Config()
	action := domain.ActionBuy
	if req.Side == domain.SideShort {
		action = domain.ActionSell
	}
	d := &strategy.Decision{
		ID: uuid.NewString(), BotID: cfg.ID, Side: req.Side, Action: action,
		IsOpening: sess.Position() == nil, AmountUSD: req.AmountUSD, LimitPrice: req.LimitPrice,
		Reason: "manual", CreatedAt: time.Now(),
	}
	s.enqueueAndWait(c, sess, botsession.Command{Kind: botsession.CmdManualTrade, Decision: d})
}

func (s *Server) handleBotClose(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	s.enqueueAndWait(c, sess, botsession.Command{Kind: botsession.CmdClose})
}

func (s *Server) handleBotActivities(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Activities())
}

func (s *Server) handleBotChartData(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	to := time.Now()
	from := to.Add(-1 * time.Hour)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}
	c.JSON(http.StatusOK, sess.ChartData(from, to))
}

func (s *Server) handleBotOrderBook(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	book, err := sess.OrderBook(c.Request.Context())
	if err != nil {
		writeErr(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (s *Server) handleBotTarget(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Target())
}

func (s *Server) handleBotSpikeStatus(c *gin.Context) {
	sess, ok := s.getSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.SpikeStatus())
}

func (s *Server) handleSettingsGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Load())
}

func (s *Server) handleSettingsUpdate(c *gin.Context) {
	var gs domain.GlobalSettings
	if err := c.ShouldBindJSON(&gs); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	s.settings.Update(gs)
	if s.cfg.SettingsPath != "" {
		if err := config.SaveSettings(s.cfg.SettingsPath, gs); err != nil {
			logger.Warnf("[server] persist settings: %v", err)
		}
	}
	s.reg.Bus().Publish(events.New(events.TypeSettingsUpdated, "", time.Now(), gs))
	c.Status(http.StatusNoContent)
}

// handleProfiles returns the known strategy/entry-mode/rebuy-strategy enum
// values, for dashboard dropdowns.
func (s *Server) handleProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategy_modes":  []domain.StrategyMode{domain.StrategySpikeFade, domain.StrategyTrainOfTrade},
		"entry_modes":     []domain.EntryMode{domain.EntryImmediateBuy, domain.EntryWaitForSpike, domain.EntryDelayedBuy},
		"rebuy_strategies": []domain.RebuyStrategy{domain.RebuyImmediate, domain.RebuyWaitForDrop},
	})
}

func (s *Server) handleKill(c *gin.Context) {
	var body struct {
		On bool `json:"on"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	s.kill.Set(body.On)
	if body.On {
		s.reg.ShutdownAll(c.Request.Context())
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[server] ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := s.reg.Bus().Subscribe()
	defer s.reg.Bus().Unsubscribe(sub)

	done := make(chan struct{})
	go readLoop(conn, done) // drains client frames (e.g. subscribe_bot) without blocking writes

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames but closes done when the client
// disconnects, so handleWS's write loop can exit promptly.
func readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
