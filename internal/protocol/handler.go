package protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/metrics"
	"github.com/raoulx24/snapkeeper/internal/snapshot"
	"github.com/raoulx24/snapkeeper/internal/sources"
)

// RegistrationDataSource serves the JSONDATA verb.
type RegistrationDataSource interface {
	FetchAll(ctx context.Context) ([]sources.RegistrationRecord, error)
}

// CommitHistorySource serves JSONLATEST and JSONRECORD. Commits are
// returned newest first.
type CommitHistorySource interface {
	FetchCommits(ctx context.Context) ([]sources.Commit, error)
}

// Dumper serves BINRECORD.
type Dumper interface {
	Dump() []snapshot.Snapshot
}

// Reply is the outcome of one message. Then, when set, must run after
// Text has been queued for the client.
type Reply struct {
	Text string
	Verb Verb
	Err  error
	Then func()
}

type Options struct {
	Secret        string
	URLTemplate   string // fmt template taking the week number
	Store         Dumper
	Registrations RegistrationDataSource // optional
	Commits       CommitHistorySource    // optional
	Shutdown      func()                 // optional
	Log           logging.Logger
}

// Handler dispatches parsed commands. It keeps no state between messages
// and is safe for concurrent use.
type Handler struct {
	auth          *Authenticator
	urlTemplate   string
	store         Dumper
	registrations RegistrationDataSource
	commits       CommitHistorySource
	shutdown      func()
	log           logging.Logger
}

func NewHandler(opts Options) *Handler {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		auth:          NewAuthenticator(opts.Secret),
		urlTemplate:   opts.URLTemplate,
		store:         opts.Store,
		registrations: opts.Registrations,
		commits:       opts.Commits,
		shutdown:      opts.Shutdown,
		log:           log.With("component", "protocol"),
	}
}

// Handle parses, authenticates and dispatches one message.
func (h *Handler) Handle(ctx context.Context, line string) Reply {
	cmd, err := Parse(line, h.auth.SecretLen())
	if err != nil {
		count("none", "protocol")
		return Reply{Text: err.Error(), Err: err}
	}

	if !h.auth.Check(cmd.Credential) {
		count(verbLabel(cmd.Verb), "auth")
		h.log.Warn("rejected command with bad credential", "verb", verbLabel(cmd.Verb))
		err := &AuthError{}
		return Reply{Text: err.Error(), Verb: cmd.Verb, Err: err}
	}

	r := h.dispatch(ctx, cmd)
	r.Verb = cmd.Verb

	var pe *ProtocolError
	switch {
	case r.Err == nil:
		count(verbLabel(cmd.Verb), "ok")
	case errors.As(r.Err, &pe):
		count(verbLabel(cmd.Verb), "invalid")
	default:
		count(verbLabel(cmd.Verb), "error")
		h.log.Error("command failed", "verb", cmd.Verb, "error", r.Err)
	}
	return r
}

func (h *Handler) dispatch(ctx context.Context, cmd Command) Reply {
	switch cmd.Verb {
	case VerbURL:
		return h.url(cmd.Args)

	case VerbJSONData:
		if h.registrations == nil {
			return unavailable(cmd.Verb, errNoSource)
		}
		recs, err := h.registrations.FetchAll(ctx)
		if err != nil {
			return unavailable(cmd.Verb, err)
		}
		return encode(cmd.Verb, recs)

	case VerbJSONLatest, VerbJSONRecord:
		if h.commits == nil {
			return unavailable(cmd.Verb, errNoSource)
		}
		commits, err := h.commits.FetchCommits(ctx)
		if err != nil {
			return unavailable(cmd.Verb, err)
		}
		if cmd.Verb == VerbJSONRecord {
			return encode(cmd.Verb, commits)
		}
		if len(commits) == 0 {
			return encode(cmd.Verb, nil)
		}
		return encode(cmd.Verb, commits[0])

	case VerbBinRecord:
		snaps := h.store.Dump()
		if snaps == nil {
			snaps = []snapshot.Snapshot{}
		}
		return encode(cmd.Verb, snaps)

	case VerbShutdown:
		if h.shutdown == nil {
			return unavailable(cmd.Verb, errNoSource)
		}
		h.log.Info("shutdown requested by client")
		return Reply{Text: ReplyShutdown, Then: h.shutdown}

	default:
		return Reply{Text: ReplyUnknownVerb, Err: &ProtocolError{Reply: ReplyUnknownVerb}}
	}
}

func (h *Handler) url(args []string) Reply {
	if len(args) == 0 {
		return Reply{Text: ReplyURLLatest}
	}
	week, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return Reply{Text: ReplyBadWeek, Err: &ProtocolError{Reply: ReplyBadWeek}}
	}
	return Reply{Text: fmt.Sprintf(h.urlTemplate, week)}
}

var errNoSource = errors.New("not configured")

func unavailable(v Verb, err error) Reply {
	return Reply{
		Text: fmt.Sprintf("ERROR %s unavailable", v),
		Err:  fmt.Errorf("%s: %w", v, err),
	}
}

func encode(v Verb, payload any) Reply {
	b, err := json.Marshal(payload)
	if err != nil {
		return unavailable(v, fmt.Errorf("encoding reply: %w", err))
	}
	return Reply{Text: string(b)}
}

// verbLabel bounds metric label cardinality to the known verbs.
func verbLabel(v Verb) string {
	if v.Known() {
		return string(v)
	}
	return "unknown"
}

func count(verb, result string) {
	metrics.CommandsTotal.WithLabelValues(verb, result).Inc()
}
