package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/chessrelay/game"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/models"
	"github.com/wfunc/chessrelay/services"
	"github.com/wfunc/chessrelay/session"
)

// Server manages the RPC listener for the admin surface.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// RelayService exposes operational queries over net/rpc: exported methods,
// exported argument types, pointer reply, error return.
type RelayService struct {
	registry *game.Registry
	sessions *session.Manager
	archive  *services.ArchiveService
}

func NewRelayService(registry *game.Registry, sessions *session.Manager, archive *services.ArchiveService) *RelayService {
	return &RelayService{
		registry: registry,
		sessions: sessions,
		archive:  archive,
	}
}

type StatsArgs struct{}

type StatsReply struct {
	ActiveGames      int
	ConnectedPlayers int
}

func (rs *RelayService) GetStats(args *StatsArgs, reply *StatsReply) error {
	reply.ActiveGames = rs.registry.Len()
	reply.ConnectedPlayers = rs.sessions.Count()
	return nil
}

type RecentGamesArgs struct {
	Limit int
}

type RecentGamesReply struct {
	Records []models.GameRecord
}

func (rs *RelayService) GetRecentGames(args *RecentGamesArgs, reply *RecentGamesReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	records, err := rs.archive.Recent(limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
