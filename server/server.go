package server

import (
	"context"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/chessrelay/broadcast"
	"github.com/wfunc/chessrelay/config"
	"github.com/wfunc/chessrelay/game"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/monitor"
	"github.com/wfunc/chessrelay/network"
	"github.com/wfunc/chessrelay/persistence"
	relayrpc "github.com/wfunc/chessrelay/rpc"
	"github.com/wfunc/chessrelay/rules"
	"github.com/wfunc/chessrelay/services"
	"github.com/wfunc/chessrelay/session"
	"github.com/wfunc/chessrelay/timer"
)

type GameServer struct {
	addr           string
	metricsAddr    string
	gracePeriod    time.Duration
	upgrader       websocket.Upgrader
	registry       *game.Registry
	sessionManager *session.Manager
	archive        *services.ArchiveService
	monitor        *monitor.Monitor
	timers         *timer.Manager
	rpcServer      *relayrpc.Server
	httpServer     *http.Server
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	broadcaster := broadcast.NewSessionBroadcaster()

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		gracePeriod:    cfg.Session.GracePeriod,
		registry:       game.NewRegistry(rules.NewBoard, broadcaster),
		sessionManager: session.NewManager(),
		archive:        services.NewArchiveService(db),
		monitor:        monitor.NewMonitor("chessrelay"),
		timers:         timer.NewManager(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	rpcServer, err := relayrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	relayService := relayrpc.NewRelayService(s.registry, s.sessionManager, s.archive)
	if err := rpc.Register(relayService); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.metricsAddr)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	logger.Log.Infof("Game server listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting and closes live connections. Each read loop
// observes its connection closing and runs the normal departure path.
func (s *GameServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(ctx)
	}
	s.rpcServer.Stop()
	s.timers.Stop()
	s.sessionManager.CloseAll()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(uuid.New().String(), conn)
	s.sessionManager.Add(sess)
	s.monitor.IncConnectedPlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed, session ID: %s", sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecConnectedPlayers()
		conn.Close()
	}()

	h := &connHandler{server: s, sess: sess}
	h.run()
}

// scheduleReap queues deletion of a game once its grace period elapses. The
// emptiness check is re-evaluated at fire time, so anyone reattaching in
// the window implicitly voids the deletion.
func (s *GameServer) scheduleReap(key string) {
	s.timers.AddTimer(s.gracePeriod, 0, func() {
		g, exists := s.registry.Lookup(key)
		if !exists || !g.Empty() {
			return
		}
		s.registry.Delete(key)
		s.monitor.SetActiveGames(s.registry.Len())
		logger.Log.Infof("Game %s abandoned, deleted after grace period", key)
	})
}
