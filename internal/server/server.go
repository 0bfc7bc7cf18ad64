// Package server is the composition root: it wires the reactor, the worker
// pool, the client engine and the command table into a single listening
// process, matching initServer/aeMain's role in server.c's main.
package server

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/FX-HAO/pusher/internal/ae"
	"github.com/FX-HAO/pusher/internal/client"
	"github.com/FX-HAO/pusher/internal/command"
	"github.com/FX-HAO/pusher/internal/config"
	"github.com/FX-HAO/pusher/internal/logx"
	"github.com/FX-HAO/pusher/internal/netutil"
	"github.com/FX-HAO/pusher/internal/pool"
	"github.com/FX-HAO/pusher/internal/pubsub"
)

// cronIntervalMinMs floors the cron period so a misconfigured hz can't spin
// the reactor on a zero-delay timer.
const cronIntervalMinMs = 1

// Server owns every long-lived collaborator: the reactor loop, the listening
// socket, the client manager, the command table and the worker pool,
// matching struct server's networking-facing fields.
type Server struct {
	cfg      config.Config
	log      *logx.Logger
	loop     *ae.Loop
	pool     *pool.Pool
	mgr      *client.Manager
	table    *command.Table
	hub      *pubsub.Hub
	listenFd int

	// Cached wall clock, refreshed once per cron tick so per-client work
	// (the idle scan, interaction stamps read in bulk) doesn't pay a
	// time.Now() call each. Atomics because worker-pool goroutines may read
	// them too; writes happen only on the reactor goroutine.
	unixtime atomic.Int64 // seconds
	mstime   atomic.Int64 // milliseconds

	cronloops int64 // cron tick counter, reactor goroutine only
}

// New builds a Server bound to cfg, but does not yet bind the listening
// socket or register any file/time events — call Listen for that.
func New(cfg config.Config, log *logx.Logger) (*Server, error) {
	loop, err := ae.NewLoop(cfg.SetSize())
	if err != nil {
		return nil, fmt.Errorf("server: create reactor: %w", err)
	}

	workerPool := pool.New("worker", cfg.ThreadCount, cfg.MaxQueuedTasks)
	workerPool.SetWakeFunc(func() { _ = loop.Wake() })
	loop.SetWakeHook(func(*ae.Loop) { workerPool.DrainCompletions() })

	hub := pubsub.NewHub()
	table := command.NewTable(hub)

	s := &Server{
		cfg:      cfg,
		log:      log,
		loop:     loop,
		pool:     workerPool,
		table:    table,
		hub:      hub,
		listenFd: -1,
	}
	s.mgr = client.NewManager(loop, s.dispatch, log, cfg.InlineBufferBytes, cfg.TCPKeepAlive)
	s.mgr.SetOnClose(hub.UnsubscribeAll)
	loop.SetBeforeSleep(s.mgr.BeforeSleep)
	s.updateCachedTime()

	return s, nil
}

// updateCachedTime refreshes the cached unixtime/mstime pair, matching
// updateCachedTime's role in serverCron: one clock read per tick instead of
// one per client touched.
func (s *Server) updateCachedTime() {
	now := time.Now()
	s.unixtime.Store(now.Unix())
	s.mstime.Store(now.UnixMilli())
}

func (s *Server) dispatch(c *client.Client, argv [][]byte) {
	s.table.Dispatch(c, argv)
}

// Listen binds and registers the listening socket's accept handler, and
// schedules the periodic idle-scan cron, matching initServer's listen setup
// plus serverCron's aeCreateTimeEvent registration.
func (s *Server) Listen() error {
	fd, err := netutil.Listen(s.cfg.Port, 511)
	if err != nil {
		return fmt.Errorf("server: listen on port %d: %w", s.cfg.Port, err)
	}
	s.listenFd = fd

	if err := s.loop.CreateFileEvent(fd, ae.Readable, s.acceptHandler, nil); err != nil {
		netutil.Close(fd)
		return fmt.Errorf("server: register accept handler: %w", err)
	}

	hz := s.cfg.HZ
	if hz <= 0 {
		hz = 10
	}
	periodMs := int64(1000 / hz)
	if periodMs < cronIntervalMinMs {
		periodMs = cronIntervalMinMs
	}
	s.loop.CreateTimeEvent(periodMs, s.cron, nil, nil)

	s.log.Notice("listening on port %d", s.cfg.Port)
	return nil
}

func (s *Server) acceptHandler(loop *ae.Loop, fd int, clientData any, mask ae.FileMask) {
	for {
		connFd, err := netutil.Accept(fd)
		if err != nil {
			if !netutil.IsAgain(err) {
				s.log.WarningThrottled("accept-error", "accept on listener fd=%d: %v", fd, err)
			}
			return
		}
		if _, err := s.mgr.CreateClient(connFd); err != nil {
			s.log.Warning("failed to register accepted client fd=%d: %v", connFd, err)
			netutil.Close(connFd)
		}
	}
}

func (s *Server) cron(loop *ae.Loop, id uint64, data any) int64 {
	s.updateCachedTime()
	hz := s.cfg.HZ
	if hz <= 0 {
		hz = 10
	}
	s.mgr.CronIdleScan(time.UnixMilli(s.mstime.Load()), hz, s.cfg.IdleTimeout)
	s.cronloops++
	periodMs := 1000 / int64(hz)
	if periodMs < cronIntervalMinMs {
		periodMs = cronIntervalMinMs
	}
	return periodMs
}

// Clients reports the current connected-client count, exposed for tests and
// future observability hooks.
func (s *Server) Clients() int { return s.mgr.Count() }

// UnixTime reports the cron-cached wall clock in seconds.
func (s *Server) UnixTime() int64 { return s.unixtime.Load() }

// MsTime reports the cron-cached wall clock in milliseconds.
func (s *Server) MsTime() int64 { return s.mstime.Load() }

// CronLoops reports how many cron ticks have run. Reactor goroutine only.
func (s *Server) CronLoops() int64 { return s.cronloops }

// Loop exposes the reactor, so the entrypoint can call Main/Stop directly.
func (s *Server) Loop() *ae.Loop { return s.loop }

// Close tears down the worker pool and the reactor's own resources. It does
// not close already-accepted client sockets; process exit after Stop
// reclaims those.
func (s *Server) Close() error {
	s.pool.Destroy()
	if s.listenFd != -1 {
		netutil.Close(s.listenFd)
	}
	return s.loop.Close()
}
