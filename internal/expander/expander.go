// Package expander implements the recursive IRR expander: the
// algorithmic core of spec.md §4.5. It walks the as-set/route-set
// dependency graph over a single IRRd connection — breadth-first when
// pipelining is on, depth-first with one query in flight when it is
// off — accumulating origin ASNs and prefixes while enforcing
// cycle prevention, an optional stop-list, a maximum recursion depth,
// and per-object source scoping.
package expander

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/irrquery/irrgen/internal/asnset"
	"github.com/irrquery/irrgen/internal/connection"
	"github.com/irrquery/irrgen/internal/depgraph"
	"github.com/irrquery/irrgen/internal/irrproto"
	"github.com/irrquery/irrgen/internal/objectset"
	"github.com/irrquery/irrgen/internal/pipeline"
	"github.com/irrquery/irrgen/internal/radixtree"
	"github.com/irrquery/irrgen/internal/validate"
	log "github.com/sirupsen/logrus"
)

// Request kinds — spec.md §9's tagged-variant design note: a small,
// closed set of query variants carried as a field on pipeline.Request.
// Each request still carries a callback; for every kind except
// kindSourceScope that callback is dispatch, which fans out on Kind.
const (
	kindMembers = iota
	kindMembersPrefixes
	kindPrefixesByASN
	kindSourceScope
)

// Config is the expander configuration enumerated in spec.md §3.
type Config struct {
	Family radixtree.Family
	Server string
	Port   string

	Sources   string // user-provided preferred order, "" = ask server
	UseSource bool   // honour per-object SOURCE:: prefixes

	MaxDepth int // 0 = unlimited
	MaxLen   int

	ValidateASNs     bool
	Pipelining       bool
	ExpandSpecialASN bool
	Identify         bool
	ClientID         string

	// NeedPrefixes is true when the requested output needs prefix data
	// (a prefix-list generation or later), enabling the A-query
	// shortcut for seed as-sets (spec.md §4.5).
	NeedPrefixes bool

	// Graph, when non-nil, records as-set/route-set dependency edges
	// for the -debug-graph diagnostic (SPEC_FULL.md §11).
	Graph *depgraph.Graph
}

// macro is an as-set or route-set seed awaiting expansion.
type macro struct {
	object string
	source string
	isRS   bool
}

// Expander drives the expansion described in spec.md §4.5.
type Expander struct {
	cfg Config

	Tree *radixtree.Tree
	ASNs *asnset.Set

	already  *objectset.Set
	stoplist *objectset.Set

	macroses []macro
	rsets    []macro

	conn  *connection.Conn
	sched *pipeline.Scheduler

	log *log.Entry
}

// New creates an expander and classifies seeds into the expander's
// initial state (spec.md §4.5 "Inputs"), without opening any
// connection.
func New(cfg Config, seeds []validate.Seed) (*Expander, error) {
	e := &Expander{
		cfg:      cfg,
		Tree:     radixtree.New(cfg.Family),
		ASNs:     asnset.New(),
		already:  objectset.New(),
		stoplist: objectset.New(),
		log:      log.WithField("component", "expander"),
	}

	for _, s := range seeds {
		if s.Stop {
			e.stoplist.Add(stoplistKey(s))
			continue
		}
		switch s.Kind {
		case validate.KindASN:
			e.ASNs.Add(s.ASN)
		case validate.KindMacro:
			m := macro{object: s.Object, source: s.Source, isRS: isRouteSet(s.Object)}
			if m.isRS {
				e.rsets = append(e.rsets, m)
			} else {
				e.macroses = append(e.macroses, m)
			}
		case validate.KindPrefix:
			if _, err := e.Tree.InsertExact(s.Prefix); err != nil {
				return nil, err
			}
		case validate.KindPrefixRange:
			if _, err := e.Tree.InsertRange(s.Prefix, s.RangeLow, s.RangeHi); err != nil {
				return nil, err
			}
		}
	}

	return e, nil
}

func stoplistKey(s validate.Seed) string {
	if s.Kind == validate.KindASN {
		return fmt.Sprintf("AS%d", s.ASN)
	}
	return s.Object
}

func isRouteSet(object string) bool {
	return len(object) >= 3 && strings.EqualFold(object[:3], "RS-")
}

// Run opens the IRRd connection, performs the handshake, drives the
// full recursive expansion, harvests prefixes for the resulting ASN
// set when the output needs prefixes or ASN validation is on (which
// also validates ASNs), and closes the connection. It
// implements the data flow of spec.md §2 and the scenarios of §8.
func (e *Expander) Run() error {
	needCapProbe := e.cfg.NeedPrefixes && len(e.macroses) > 0
	conn, err := connection.Dial(connection.Options{
		Server:              e.cfg.Server,
		Port:                e.cfg.Port,
		Identify:            e.cfg.Identify,
		ClientID:            e.cfg.ClientID,
		Sources:             e.cfg.Sources,
		NeedCapabilityProbe: needCapProbe,
		Pipelining:          e.cfg.Pipelining,
	})
	if err != nil {
		return err
	}
	e.conn = conn
	defer conn.Quit()

	e.sched = pipeline.New(conn.R, conn.W, e.cfg.Pipelining)
	defer e.sched.Close()

	for _, m := range e.macroses {
		e.expandMacro(m, 0)
	}
	for _, m := range e.rsets {
		e.expandMacro(m, 0)
	}

	if err := e.sched.Run(); err != nil {
		return err
	}

	if e.cfg.NeedPrefixes || e.cfg.ValidateASNs {
		if err := e.harvestPrefixes(); err != nil {
			return err
		}
		if err := e.sched.Run(); err != nil {
			return err
		}
	}

	return nil
}

// expandMacro resolves one as-set/route-set per the state machine of
// spec.md §4.5: UNKNOWN -> QUEUED -> INFLIGHT -> EXPANDED, or -> SKIPPED
// when stoplisted or past the depth limit. depth is the parent's depth;
// this object's own depth is depth+1.
func (e *Expander) expandMacro(m macro, depth int) {
	if e.already.Contains(m.object) {
		e.log.WithField("object", m.object).Debug("expander: cycle guard, already expanded")
		return
	}
	if e.stoplist.Contains(m.object) {
		e.log.WithField("object", m.object).Debug("expander: skipping stoplisted object")
		return
	}
	if e.cfg.MaxDepth > 0 && depth+1 > e.cfg.MaxDepth {
		e.log.WithFields(log.Fields{"object": m.object, "depth": depth + 1}).Debug("expander: depth limit exceeded")
		return
	}
	e.already.Add(m.object)

	childDepth := depth + 1
	source := m.source
	if source == "" || !e.cfg.UseSource {
		source = ""
	}

	if e.cfg.Graph != nil && depth > 0 {
		// Edges are recorded by the caller when it discovers m as a
		// token of its own expansion; see dispatchMembersToken.
	}

	if e.cfg.NeedPrefixes && e.conn.HasAQuery && depth == 0 && !m.isRS {
		e.enqueueScoped(source, fmt.Sprintf("!a%d%s", e.cfg.Family, m.object), kindMembersPrefixes, m, childDepth)
		return
	}

	e.enqueueScoped(source, fmt.Sprintf("!i%s", m.object), kindMembers, m, childDepth)
}

// enqueueScoped wraps a query with !s<source>/!s<defaultsources> when
// per-object source scoping applies, per spec.md §4.5.
func (e *Expander) enqueueScoped(source, text string, kind int, m macro, depth int) {
	if source != "" {
		e.enqueueSourceScope(source)
	}
	e.enqueue(text, kind, m, depth)
	if source != "" {
		e.enqueueSourceScope(e.conn.DefaultSources)
	}
}

func (e *Expander) enqueueSourceScope(source string) {
	req := pipeline.Request{
		Text: fmt.Sprintf("!s%s", source),
		Kind: kindSourceScope,
		Callback: func(_ pipeline.Request, reply irrproto.Reply) {
			// Status replies to source-scope commands are consumed and
			// otherwise ignored (spec.md §4.5).
			e.reportNonFatal(reply, "!s"+source)
		},
	}
	if err := e.sched.Enqueue(req); err != nil {
		e.fatal(err)
	}
}

func (e *Expander) enqueue(text string, kind int, m macro, depth int) {
	req := pipeline.Request{
		Text:     text,
		Kind:     kind,
		Depth:    depth,
		UserData: m,
		Callback: e.dispatch,
	}
	if err := e.sched.Enqueue(req); err != nil {
		e.fatal(err)
	}
}

// dispatch is the single entry point every in-flight request's reply
// passes through; it fans out by Kind per spec.md §9's tagged-variant
// design.
func (e *Expander) dispatch(req pipeline.Request, reply irrproto.Reply) {
	m, _ := req.UserData.(macro)

	switch req.Kind {
	case kindMembers:
		e.dispatchMembers(m, req.Depth, reply)
	case kindMembersPrefixes:
		e.dispatchMembersPrefixes(reply)
	case kindPrefixesByASN:
		e.dispatchPrefixesByASN(req, reply)
	case kindSourceScope:
		// handled inline by enqueueSourceScope's own callback
	}
}

func (e *Expander) dispatchMembers(m macro, depth int, reply irrproto.Reply) {
	switch reply.Status {
	case irrproto.StatusData:
		for _, tok := range reply.Tokens {
			e.dispatchMembersToken(m, depth, tok)
		}
	case irrproto.StatusOK:
		// no data; nothing to do unless validating ASNs, which does
		// not apply to a members() query.
	default:
		e.reportNonFatal(reply, fmt.Sprintf("members(%s)", m.object))
	}
}

func (e *Expander) dispatchMembersToken(parent macro, depth int, tok string) {
	if strings.EqualFold(tok, "ANY") {
		e.log.WithField("object", parent.object).Debug("expander: ignoring ANY token")
		return
	}
	switch {
	case looksLikeASN(tok):
		e.addDiscoveredASN(tok)
	case parent.isRS && looksLikePrefix(tok):
		// Checked before looksLikeMacro: an IPv6 member prefix such as
		// "2001:db8::/32" contains ':' and would otherwise be
		// misclassified as a macro reference and recursed into !i.
		e.insertPrefixToken(tok)
	case looksLikeMacro(tok):
		child := macro{object: tok, isRS: isRouteSet(tok)}
		if e.cfg.Graph != nil {
			e.cfg.Graph.AddEdge(parent.object, tok)
		}
		e.expandMacro(child, depth)
	default:
		e.log.WithFields(log.Fields{"object": parent.object, "token": tok}).Debug("expander: skipping unrecognised token")
	}
}

func (e *Expander) addDiscoveredASN(tok string) {
	if e.stoplist.Contains(tok) {
		return
	}
	n, err := strconv.ParseUint(tok[2:], 10, 32)
	if err != nil {
		e.log.WithField("token", tok).Debug("expander: malformed ASN token, skipping")
		return
	}
	asn := uint32(n)
	if !e.cfg.ExpandSpecialASN && validate.IsSpecialASN(asn) {
		e.log.WithField("asn", asn).Debug("expander: skipping reserved/private ASN")
		return
	}
	e.ASNs.Add(asn)
}

func (e *Expander) dispatchMembersPrefixes(reply irrproto.Reply) {
	switch reply.Status {
	case irrproto.StatusData:
		for _, tok := range reply.Tokens {
			e.insertPrefixToken(tok)
		}
	default:
		e.reportNonFatal(reply, "members->prefixes")
	}
}

func (e *Expander) insertPrefixToken(tok string) {
	base, low, high, hasRange, err := splitPrefixToken(tok)
	if err != nil {
		e.log.WithField("token", tok).Debug("expander: malformed prefix token, skipping")
		return
	}
	p, err := radixtree.NewPrefix(base)
	if err != nil {
		e.log.WithField("token", tok).Debug("expander: malformed prefix token, skipping")
		return
	}
	if p.Family() != e.cfg.Family {
		return
	}
	if e.cfg.MaxLen > 0 && p.Masklen() > e.cfg.MaxLen {
		return
	}
	if hasRange {
		_, _ = e.Tree.InsertRange(p, low, high)
	} else {
		_, _ = e.Tree.InsertExact(p)
	}
}

// harvestPrefixes issues prefixes_by_asn for every ASN in the final set
// (spec.md §4.5 "Prefix harvesting").
func (e *Expander) harvestPrefixes() error {
	cmd := "!gas"
	if e.cfg.Family == radixtree.IPv6 {
		cmd = "!6as"
	}
	var errOut error
	e.ASNs.Range(func(asn uint32) {
		req := pipeline.Request{
			Text:     fmt.Sprintf("%s%d", cmd, asn),
			Kind:     kindPrefixesByASN,
			UserData: asn,
			Callback: e.dispatch,
		}
		if err := e.sched.Enqueue(req); err != nil && errOut == nil {
			errOut = err
		}
	})
	return errOut
}

func (e *Expander) dispatchPrefixesByASN(req pipeline.Request, reply irrproto.Reply) {
	asn, _ := req.UserData.(uint32)
	switch reply.Status {
	case irrproto.StatusData:
		for _, tok := range reply.Tokens {
			e.insertPrefixToken(tok)
		}
	case irrproto.StatusOK:
		if e.cfg.ValidateASNs {
			e.ASNs.Remove(asn)
		}
	case irrproto.StatusNotFound:
		e.log.WithField("asn", asn).Warn("expander: key not found")
		if e.cfg.ValidateASNs {
			e.ASNs.Remove(asn)
		}
	default:
		e.reportNonFatal(reply, fmt.Sprintf("prefixes_by_asn(AS%d)", asn))
	}
}

func (e *Expander) reportNonFatal(reply irrproto.Reply, what string) {
	switch reply.Status {
	case irrproto.StatusMultiple:
		e.log.WithFields(log.Fields{"what": what, "message": reply.Message}).Warn("expander: multiple keys matched")
	case irrproto.StatusServerError:
		e.log.WithFields(log.Fields{"what": what, "message": reply.Message}).Warn("expander: server error")
	case irrproto.StatusNotFound:
		e.log.WithField("what", what).Warn("expander: key not found")
	}
}

func (e *Expander) fatal(err error) {
	e.log.WithError(err).Error("expander: fatal I/O error")
}

func looksLikeASN(tok string) bool {
	if len(tok) < 3 || !strings.EqualFold(tok[:2], "AS") {
		return false
	}
	for _, r := range tok[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func looksLikeMacro(tok string) bool {
	return strings.ContainsAny(tok, "-:")
}

func looksLikePrefix(tok string) bool {
	return strings.Contains(tok, ".") || strings.Contains(tok, ":")
}

// splitPrefixToken parses a route-set member token, which is either a
// plain prefix ("192.0.2.0/24") or a prefix with a length-range suffix
// ("192.0.2.0/24^24-24" or "192.0.2.0/24^+"), per spec.md §4.1.
func splitPrefixToken(tok string) (base netip.Prefix, low, high int, hasRange bool, err error) {
	idx := strings.Index(tok, "^")
	if idx < 0 {
		base, err = netip.ParsePrefix(tok)
		return base, 0, 0, false, err
	}

	base, err = netip.ParsePrefix(tok[:idx])
	if err != nil {
		return netip.Prefix{}, 0, 0, false, err
	}
	masklen := base.Bits()
	maxLen := 32
	if base.Addr().Is6() {
		maxLen = 128
	}

	expr := tok[idx+1:]
	switch {
	case expr == "+":
		low, high = masklen, maxLen
	case expr == "-":
		// Not part of the documented grammar; reject explicitly rather
		// than silently misinterpreting it.
		return netip.Prefix{}, 0, 0, false, fmt.Errorf("irrgen: malformed length range %q", tok)
	case strings.HasPrefix(expr, "-"):
		high, err = strconv.Atoi(expr[1:])
		if err != nil {
			return netip.Prefix{}, 0, 0, false, fmt.Errorf("irrgen: malformed length range %q: %w", tok, err)
		}
		low = masklen
	default:
		parts := strings.SplitN(expr, "-", 2)
		if len(parts) != 2 {
			return netip.Prefix{}, 0, 0, false, fmt.Errorf("irrgen: malformed length range %q", tok)
		}
		if low, err = strconv.Atoi(parts[0]); err != nil {
			return netip.Prefix{}, 0, 0, false, fmt.Errorf("irrgen: malformed length range %q: %w", tok, err)
		}
		if high, err = strconv.Atoi(parts[1]); err != nil {
			return netip.Prefix{}, 0, 0, false, fmt.Errorf("irrgen: malformed length range %q: %w", tok, err)
		}
	}

	if low < 1 || low > high || high > maxLen || masklen > low {
		return netip.Prefix{}, 0, 0, false, fmt.Errorf("irrgen: length range %d-%d invalid for /%d", low, high, masklen)
	}
	return base, low, high, true, nil
}
