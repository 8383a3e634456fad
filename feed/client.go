package feed

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Logger            logrus.FieldLogger
	ReconnectInterval time.Duration
	PollInterval      time.Duration
	// OnSignedOut runs when the server revokes the session out from under the client.
	OnSignedOut func(reason error)
	// OnNotify runs for every new live push.
	OnNotify func(Notification)
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 5 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	return o
}

// Client is the per-process entry point: one session, one log, one supervisor.
type Client struct {
	API        *API
	Log        *Log
	supervisor *Supervisor
	opts       Options

	// lifecycle serializes sign-in and sign-out against each other.
	lifecycle sync.Mutex

	mu      sync.Mutex
	session *Session
}

func NewClient(api *API, dialer LiveDialer, cache Cache, opts Options) *Client {
	opts = opts.withDefaults()
	log := NewLog(cache, WithLogger(opts.Logger), WithNotifier(opts.OnNotify))
	c := &Client{
		API:  api,
		Log:  log,
		opts: opts,
	}
	c.supervisor = newSupervisor(api, dialer, log, opts)
	c.supervisor.onRevoked = c.forceSignOut
	return c
}

// SignIn authenticates and starts the supervised live/poll loop.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	session, err := c.API.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.supervisor.Stop()
	c.mu.Lock()
	c.session = &session
	c.mu.Unlock()

	c.supervisor.Start(session)
	return session, nil
}

// SignOut always succeeds locally. The server-side revocation is best effort.
func (c *Client) SignOut(ctx context.Context) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.supervisor.Stop()

	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session != nil {
		if err := c.API.Logout(ctx, session.Token); err != nil {
			c.opts.Logger.WithError(err).Warn("server sign-out failed, signed out locally")
		}
	}
	c.Log.Reset()
}

// forceSignOut ends the given session. A revocation that arrives after the user
// signed in again belongs to the old session and is ignored.
func (c *Client) forceSignOut(revoked Session, reason error) {
	c.lifecycle.Lock()
	c.mu.Lock()
	current := c.session != nil && c.session.Token == revoked.Token
	c.mu.Unlock()
	if !current {
		c.lifecycle.Unlock()
		return
	}

	c.supervisor.Stop()
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.lifecycle.Unlock()

	c.Log.Reset()
	c.opts.Logger.WithError(reason).Warn("session ended by server")
	if c.opts.OnSignedOut != nil {
		c.opts.OnSignedOut(reason)
	}
}

func (c *Client) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Refresh pulls the server list now.
func (c *Client) Refresh(ctx context.Context) error {
	session, ok := c.Session()
	if !ok {
		return ErrNotSignedIn
	}
	err := c.supervisor.Refresh(ctx, session)
	if isCredentialError(err) {
		c.forceSignOut(session, err)
	}
	return err
}

// MarkAllRead clears the badge at once and then tells the server. A server failure
// leaves the local state as it is; the next refresh brings the server's view back.
func (c *Client) MarkAllRead(ctx context.Context) {
	c.Log.MarkAllReadLocal()

	session, ok := c.Session()
	if !ok {
		return
	}
	if err := c.API.MarkAllRead(ctx, session.Token); err != nil {
		c.opts.Logger.WithError(err).Debug("mark all read not confirmed by server")
	}
}

func (c *Client) Connected() bool {
	return c.supervisor.Connected()
}
