package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roasbeef/pagesum/internal/actorutil"
	"github.com/roasbeef/pagesum/internal/metrics"
)

// DefaultListenAddr is the gateway address used when none is configured.
const DefaultListenAddr = "127.0.0.1:8765"

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	// ListenAddr is the host:port the HTTP server binds.
	ListenAddr string

	// CallTimeout bounds each coordinator request.
	CallTimeout time.Duration

	// AllowedOrigins lists browser origins accepted besides same-origin
	// requests.
	AllowedOrigins []string
}

// Gateway exposes the coordinator, the broadcast feed and an optional panel
// over a JSON websocket, next to health and metrics endpoints.
type Gateway struct {
	cfg         GatewayConfig
	coordinator CoordinatorRef
	hub         HubRef
	panel       Panel
	log         *slog.Logger

	upgrader websocket.Upgrader
	router   chi.Router

	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient

	// quit is closed once the client loop has exited.
	quit chan struct{}
}

// NewGateway creates a gateway. panel may be nil, in which case panel
// commands are rejected.
func NewGateway(cfg GatewayConfig, coordinator CoordinatorRef, hub HubRef,
	panel Panel, log *slog.Logger) *Gateway {

	if log == nil {
		log = slog.Default()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	g := &Gateway{
		cfg:         cfg,
		coordinator: coordinator,
		hub:         hub,
		panel:       panel,
		log:         log.With("component", "gateway"),
		clients:     make(map[*wsClient]struct{}),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		quit:        make(chan struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", g.handleWebSocket)
	r.Get("/healthz", g.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	g.router = r

	return g
}

// Handler returns the HTTP handler of the gateway.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// checkOrigin accepts requests without an origin, same-origin requests and
// configured origins.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range g.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", g.cfg.ListenAddr, err)
	}

	return g.Serve(ctx, lis)
}

// Serve runs the gateway on lis until ctx is done.
func (g *Gateway) Serve(ctx context.Context, lis net.Listener) error {
	sub, err := Subscribe(ctx, g.hub, sendBufferSize)
	if err != nil {
		_ = lis.Close()
		return err
	}

	srv := &http.Server{
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()

	g.log.InfoContext(ctx, "Gateway listening", "addr", lis.Addr().String())

	err = g.run(ctx, sub)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()

	sub.Cancel(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		g.log.Warn("Gateway shutdown failed", "error", err)
	}

	if serr := <-serveErr; !errors.Is(serr, http.ErrServerClosed) {
		return serr
	}

	return err
}

// run owns the client set: it adds and removes clients and forwards hub
// broadcasts to all of them.
func (g *Gateway) run(ctx context.Context, sub *Subscription) error {
	defer func() {
		close(g.quit)
		for client := range g.clients {
			client.Close()
		}
		metrics.ConnectedClients.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-g.register:
			g.clients[client] = struct{}{}
			metrics.ConnectedClients.Set(float64(len(g.clients)))
			g.log.Debug("Websocket client registered",
				"total", len(g.clients))

		case client := <-g.unregister:
			if _, ok := g.clients[client]; ok {
				delete(g.clients, client)
				client.Close()
			}
			metrics.ConnectedClients.Set(float64(len(g.clients)))
			g.log.Debug("Websocket client unregistered",
				"total", len(g.clients))

		case b := <-sub.C():
			env, err := BroadcastEnvelope(b)
			if err != nil {
				g.log.Error("Encode broadcast failed", "error", err)
				continue
			}
			for client := range g.clients {
				client.Send(env)
			}
		}
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(g, conn)

	select {
	case g.register <- client:
	case <-g.quit:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// handleHealth answers 200 when the coordinator replies to a ping.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	var ping Request = PingRequest{}
	resp, err := actorutil.AskAwaitTyped[PingResponse](
		r.Context(), g.coordinator, ping, g.cfg.CallTimeout,
	)
	if err != nil || !resp.Success {
		http.Error(w, "coordinator unavailable",
			http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true}`))
}

// handleIncoming dispatches one frame. Coordinator requests are answered in
// order; panel commands run in the background since they last a whole
// generation.
func (g *Gateway) handleIncoming(client *wsClient, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		client.Send(ErrorEnvelope("", fmt.Errorf("invalid frame: %w",
			err)))
		return
	}

	switch env.Type {
	case TypeSummarizeURL, TypeRetrySummary, TypeRemoveSummary,
		TypePanelStatus:

		go func() {
			client.Send(g.handlePanel(env))
		}()

	default:
		client.Send(g.handleRequest(env))
	}
}

// handleRequest forwards a coordinator request and encodes the reply.
func (g *Gateway) handleRequest(env Envelope) Envelope {
	req, err := DecodeRequest(env)
	if err != nil {
		return ErrorEnvelope(env.ID, err)
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), g.cfg.CallTimeout,
	)
	defer cancel()

	resp, err := actorutil.AskAwait(ctx, g.coordinator, req)
	if err != nil {
		return ErrorEnvelope(env.ID, err)
	}

	reply, err := NewEnvelope(ResultType(env.Type), env.ID, resp)
	if err != nil {
		return ErrorEnvelope(env.ID, err)
	}

	return reply
}

// handlePanel runs a panel command.
func (g *Gateway) handlePanel(env Envelope) Envelope {
	if g.panel == nil {
		return ErrorEnvelope(env.ID, errors.New("no panel attached"))
	}

	ctx := context.Background()

	var (
		payload any
		err     error
	)
	switch env.Type {
	case TypeSummarizeURL:
		var p SummarizeURLPayload
		if p, err = DecodePayload[SummarizeURLPayload](env); err != nil {
			break
		}

		var item ItemResult
		item.Item, err = g.panel.SummarizeURL(ctx, p.URL)
		payload = item

	case TypeRetrySummary:
		var p ItemIDPayload
		if p, err = DecodePayload[ItemIDPayload](env); err != nil {
			break
		}

		var item ItemResult
		item.Item, err = g.panel.Retry(ctx, p.ID)
		payload = item

	case TypeRemoveSummary:
		var p ItemIDPayload
		if p, err = DecodePayload[ItemIDPayload](env); err != nil {
			break
		}

		err = g.panel.Delete(ctx, p.ID)
		payload = ItemIDPayload{ID: p.ID}

	case TypePanelStatus:
		payload = PanelStatus{Busy: g.panel.Busy()}
	}

	if err != nil {
		return ErrorEnvelope(env.ID, err)
	}

	reply, err := NewEnvelope(ResultType(env.Type), env.ID, payload)
	if err != nil {
		return ErrorEnvelope(env.ID, err)
	}

	return reply
}
