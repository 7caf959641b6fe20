// Package connection owns the single TCP socket to an IRRd server: the
// initial handshake and the orderly teardown (spec.md §4.2).
package connection

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/irrquery/irrgen/internal/irrproto"
	log "github.com/sirupsen/logrus"
)

// Options configure the handshake.
type Options struct {
	Server string
	Port   string

	// Identify sends a client identification line (!n<ident>) during
	// the handshake.
	Identify bool
	// ClientID is the identification string sent when Identify is set.
	ClientID string

	// Sources is the user-requested preferred source order. Empty means
	// "ask the server" (!s-lc).
	Sources string

	// NeedCapabilityProbe requests the !a capability probe — sent when
	// generation requires prefix data and an as-set input is present
	// (spec.md §4.2 step 3).
	NeedCapabilityProbe bool

	// Pipelining is accepted for spec.md §4.2 step 6 but does not change
	// the connection: the socket is used the same way either way, and
	// the pipeline scheduler decides how requests are driven.
	Pipelining bool

	DialTimeout time.Duration
}

// Conn is a live, handshaken IRRd connection.
type Conn struct {
	nc net.Conn
	R  *bufio.Reader
	W  *bufio.Writer

	// HasAQuery reports whether the server accepted the !a capability
	// probe.
	HasAQuery bool
	// DefaultSources is the source list discovered via !s-lc, or the
	// user-supplied Sources echoed back.
	DefaultSources string
}

// Dial connects to opt.Server:opt.Port and performs the full handshake
// described in spec.md §4.2. Any failure during the handshake is fatal:
// the connection is closed and a non-nil error returned.
func Dial(opt Options) (*Conn, error) {
	addr := net.JoinHostPort(opt.Server, opt.Port)
	d := net.Dialer{Timeout: opt.DialTimeout}
	nc, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connection: dialing %s: %w", addr, err)
	}

	c := &Conn{
		nc: nc,
		R:  bufio.NewReader(nc),
		W:  bufio.NewWriter(nc),
	}

	if err := c.handshake(opt); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) handshake(opt Options) error {
	// 1. Multi-command mode.
	if err := c.command("!!"); err != nil {
		return fmt.Errorf("connection: entering multi-command mode: %w", err)
	}

	// 2. Client identification.
	if opt.Identify {
		id := opt.ClientID
		if id == "" {
			id = "irrgen"
		}
		if err := c.expectOK(fmt.Sprintf("!n%s", id)); err != nil {
			return fmt.Errorf("connection: identifying as %s: %w", id, err)
		}
	}

	// 3. A-query capability probe.
	if opt.NeedCapabilityProbe {
		reply, err := c.query("!a")
		if err != nil {
			return fmt.Errorf("connection: probing A-query capability: %w", err)
		}
		c.HasAQuery = reply.Status == irrproto.StatusOK
		log.WithField("a-query", c.HasAQuery).Debug("connection: capability probe")
	}

	// 4. Determine defaultsources.
	if opt.Sources != "" {
		c.DefaultSources = opt.Sources
	} else {
		reply, err := c.query("!s-lc")
		if err != nil {
			return fmt.Errorf("connection: listing sources: %w", err)
		}
		// !s-lc's payload is a count line followed by the actual
		// space-separated source list on the second line
		// (original_source/expander.c's bgpq_get_irrd_sources).
		if reply.Status == irrproto.StatusData && len(reply.Lines) > 1 {
			c.DefaultSources = strings.Join(strings.Fields(reply.Lines[1]), ",")
		}
	}

	// 5. Select sources, if the user asked for specific ones.
	if opt.Sources != "" {
		if err := c.expectOK(fmt.Sprintf("!s%s", opt.Sources)); err != nil {
			return fmt.Errorf("connection: selecting sources %q: %w", opt.Sources, err)
		}
	}

	// 6. Non-blocking mode is irrgen's pipelined scheduler's concern,
	// not the connection's: Go's runtime already multiplexes blocking
	// reads/writes over the netpoller, so there is no separate socket
	// mode to flip here. The option is not stored; the pipeline package
	// receives its own pipelining flag from the caller.
	_ = opt.Pipelining

	return nil
}

// command sends cmd and discards its single-line reply, returning an
// error if it isn't 'C'.
func (c *Conn) command(cmd string) error {
	return c.expectOK(cmd)
}

func (c *Conn) expectOK(cmd string) error {
	reply, err := c.query(cmd)
	if err != nil {
		return err
	}
	if reply.Status != irrproto.StatusOK {
		return fmt.Errorf("connection: %q: expected C, got %q", cmd, reply.Status)
	}
	return nil
}

// query writes cmd and reads back exactly one reply.
func (c *Conn) query(cmd string) (irrproto.Reply, error) {
	log.WithField("cmd", cmd).Trace("connection: sending")
	if err := irrproto.WriteCommand(c.W, cmd); err != nil {
		return irrproto.Reply{}, err
	}
	return irrproto.Read(c.R)
}

// Quit sends the orderly teardown command and closes the socket. Best
// effort per spec.md §4.2: a failure writing !q does not prevent the
// close.
func (c *Conn) Quit() error {
	_ = irrproto.WriteCommand(c.W, "!q")
	return c.nc.Close()
}

// NetConn exposes the underlying connection for the pipeline scheduler.
func (c *Conn) NetConn() net.Conn { return c.nc }
