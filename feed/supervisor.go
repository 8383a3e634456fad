package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Supervisor keeps the feed moving while a session is active: it holds the live
// channel open, reconnects on a fixed interval, and polls the server while
// disconnected. It runs between Start and Stop only.
type Supervisor struct {
	api    *API
	dialer LiveDialer
	log    *Log
	logger logrus.FieldLogger

	reconnectInterval time.Duration
	pollInterval      time.Duration
	onRevoked         func(Session, error)

	mu      sync.Mutex
	session Session
	cancel  context.CancelFunc
	done    chan struct{}

	connected atomic.Bool
}

func newSupervisor(api *API, dialer LiveDialer, log *Log, opts Options) *Supervisor {
	return &Supervisor{
		api:               api,
		dialer:            dialer,
		log:               log,
		logger:            opts.Logger,
		reconnectInterval: opts.ReconnectInterval,
		pollInterval:      opts.PollInterval,
	}
}

// Start launches the loop for the session. Starting a running supervisor does nothing.
func (s *Supervisor) Start(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.session = session
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, session, s.done)
}

// Stop ends the loop and waits for it to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

// Refresh pulls the authoritative list and reconciles it into the log.
func (s *Supervisor) Refresh(ctx context.Context, session Session) error {
	items, err := s.api.Notifications(ctx, session.Token)
	if err != nil {
		return err
	}
	s.log.Reconcile(items)
	return nil
}

func (s *Supervisor) run(ctx context.Context, session Session, done chan struct{}) {
	var revoked error
	defer func() {
		s.connected.Store(false)
		close(done)
		if revoked != nil && s.onRevoked != nil {
			go s.onRevoked(session, revoked)
		}
	}()

	for {
		// Dial before pulling: once the channel is registered, anything stored after
		// the pull arrives as a push, so nothing falls between the two.
		conn, err := s.dialer.Dial(ctx, session)
		if err == nil {
			if rerr := s.Refresh(ctx, session); rerr != nil {
				if isCredentialError(rerr) {
					conn.Close()
					revoked = rerr
					return
				}
				if ctx.Err() == nil {
					s.logger.WithError(rerr).Warn("feed refresh failed")
				}
			}
			s.connected.Store(true)
			err = s.consume(ctx, conn)
			s.connected.Store(false)
		} else if !isCredentialError(err) && ctx.Err() == nil {
			if rerr := s.Refresh(ctx, session); rerr != nil {
				if isCredentialError(rerr) {
					revoked = rerr
					return
				}
				s.logger.WithError(rerr).Warn("feed refresh failed")
			}
		}
		if ctx.Err() != nil {
			return
		}
		if isCredentialError(err) {
			revoked = err
			return
		}
		s.logger.WithError(err).Info("live channel down, polling until reconnect")

		if err := s.waitOffline(ctx, session); err != nil {
			if isCredentialError(err) {
				revoked = err
			}
			return
		}
	}
}

func (s *Supervisor) consume(ctx context.Context, conn LiveConn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		n, err := conn.Next()
		if err != nil {
			return err
		}
		s.log.Receive(n)
	}
}

// waitOffline polls until the next reconnect attempt is due.
func (s *Supervisor) waitOffline(ctx context.Context, session Session) error {
	reconnect := time.NewTimer(s.reconnectInterval)
	defer reconnect.Stop()
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnect.C:
			return nil
		case <-poll.C:
			if err := s.Refresh(ctx, session); err != nil {
				if isCredentialError(err) {
					return err
				}
				s.logger.WithError(err).Debug("feed poll failed")
			}
		}
	}
}

func isCredentialError(err error) bool {
	return errors.Is(err, ErrSessionRevoked) || errors.Is(err, ErrUnauthorized)
}
