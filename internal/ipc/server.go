package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"radarpipe/internal/daemon"
	"radarpipe/internal/logging"
)

// Server exposes pipeline control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. onStop runs
// after a Stop request, letting the daemon process initiate shutdown.
func NewServer(ctx context.Context, path string, m *daemon.Manager, logger *slog.Logger, onStop func()) (*Server, error) {
	if m == nil {
		return nil, errors.New("ipc server requires manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{manager: m, logger: logging.WithComponent(logger, "ipc"), ctx: ctx, onStop: onStop}
	if err := rpcServer.RegisterName("Radarpipe", svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	manager *daemon.Manager
	logger  *slog.Logger
	ctx     context.Context
	onStop  func()
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.manager.Status(s.ctx)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("pipeline stop requested")
	s.manager.Stop()
	resp.Stopped = true
	s.logger.Info("pipeline stopped via ipc")
	if s.onStop != nil {
		go s.onStop()
	}
	return nil
}

func (s *service) UpdateConfig(req UpdateConfigRequest, resp *UpdateConfigResponse) error {
	if len(req.Settings) == 0 {
		return errors.New("update-config requires at least one setting")
	}
	applied, err := s.manager.UpdateConfig(req.Settings)
	if err != nil {
		return err
	}
	resp.Applied = applied
	return nil
}

func (s *service) StateCount(_ StateCountRequest, resp *StateCountResponse) error {
	count, err := s.manager.Tracker().Count(s.ctx)
	if err != nil {
		return err
	}
	resp.Count = count
	return nil
}

func (s *service) StateRange(req StateRangeRequest, resp *StateRangeResponse) error {
	names, err := s.manager.Tracker().ByDateRange(s.ctx, req.Start, req.End, req.Instrument)
	if err != nil {
		return err
	}
	resp.Filenames = names
	return nil
}

func (s *service) StateLatest(req StateLatestRequest, resp *StateLatestResponse) error {
	rec, err := s.manager.Tracker().Latest(s.ctx, req.Instrument)
	if err != nil {
		return err
	}
	resp.Record = rec
	return nil
}

func (s *service) StateInfo(req StateInfoRequest, resp *StateInfoResponse) error {
	if req.Filename == "" {
		return errors.New("state info requires a filename")
	}
	rec, err := s.manager.Tracker().Info(s.ctx, req.Filename)
	if err != nil {
		return err
	}
	resp.Record = rec
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.manager.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
