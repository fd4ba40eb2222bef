package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"github.com/mitralabs/coco/internal/daemon"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
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
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Coco", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart cocod if needed"))
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
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockPath
	resp.QueuePath = status.QueuePath
	resp.QueueLength = status.QueueLength
	resp.RecordingsDir = status.RecordingsIn
	resp.BootSession = status.State.BootSession
	resp.AudioFileIndex = status.State.AudioFileIndex
	resp.RecordingRequested = status.State.RecordingRequested
	resp.LinkConnected = status.State.LinkConnected
	resp.BackendReachable = status.State.BackendReachable
	resp.UploadInProgress = status.State.UploadInProgress
	resp.FilesAvailable = status.State.FilesAvailable
	resp.ReadyForSleep = status.State.ReadyForSleep
	resp.ConsecutiveUploadFailures = status.State.ConsecutiveUploadFailures
	resp.UploadsTotal = status.LedgerStats.Total
	resp.UploadsSucceeded = status.LedgerStats.Successes
	resp.UploadsFailed = status.LedgerStats.Failures
	return nil
}

func (s *service) Record(req RecordRequest, resp *RecordResponse) error {
	s.daemon.RequestRecording(req.Active)
	resp.Recording = req.Active
	if req.Active {
		s.logger.Info("recording requested via IPC",
			logging.String(logging.FieldEventType, "record_start"))
	} else {
		s.logger.Info("recording stopped via IPC",
			logging.String(logging.FieldEventType, "record_stop"))
	}
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	entries, err := s.daemon.QueueEntries(s.ctx)
	if err != nil {
		return err
	}
	resp.Entries = entries
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	removed, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("queue cleared via IPC",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) Uploads(req UploadsRequest, resp *UploadsResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	attempts, err := s.daemon.RecentUploads(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Attempts = make([]UploadAttempt, 0, len(attempts))
	for _, attempt := range attempts {
		resp.Attempts = append(resp.Attempts, UploadAttempt{
			CorrelationID: attempt.CorrelationID,
			BootSession:   attempt.BootSession,
			FilePath:      attempt.FilePath,
			Bytes:         attempt.Bytes,
			Outcome:       attempt.Outcome,
			Detail:        attempt.Detail,
			AttemptedAt:   attempt.AttemptedAt.Format(time.RFC3339),
		})
	}
	return nil
}

func (s *service) Wake(_ WakeRequest, resp *WakeResponse) error {
	verdict := s.daemon.TriggerWake(s.ctx)
	resp.Validity = verdict.String()
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if req.Follow && wait <= 0 {
		wait = time.Second
	}

	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}

	result, err := s.daemon.TailLogs(ctx, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}
