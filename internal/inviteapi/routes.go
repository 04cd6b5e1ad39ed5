// Package inviteapi exposes the invitation lifecycle and the twelve conduit-step
// RPCs over HTTP (component E). AUTHENTICATED greeter calls use HTTP Basic
// auth; INVITED claimer calls carry only the invitation token in the path,
// matching the handshake abstraction in §6.
package inviteapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/scille-labs/invite-conduit/internal/conduit"
	"github.com/scille-labs/invite-conduit/internal/eventbus"
	"github.com/scille-labs/invite-conduit/internal/httpmw"
	"github.com/scille-labs/invite-conduit/internal/identity"
	"github.com/scille-labs/invite-conduit/internal/platform/logutil"
	"github.com/scille-labs/invite-conduit/internal/presence"
	"github.com/scille-labs/invite-conduit/internal/store"
)

// Server wires the invitation store, conduit engine, member directory, and
// presence tracker into an HTTP router.
type Server struct {
	invitations store.InvitationStore
	engine      *conduit.Engine
	members     identity.MemberStore
	auth        *identity.Authenticator
	bus         eventbus.Bus
	presence    *presence.Tracker
	log         *slog.Logger
}

// NewServer constructs a Server. log discards output if nil.
func NewServer(invitations store.InvitationStore, engine *conduit.Engine, members identity.MemberStore, auth *identity.Authenticator, bus eventbus.Bus, tracker *presence.Tracker, log *slog.Logger) *Server {
	log = logutil.NoopIfNil(log)
	return &Server{
		invitations: invitations,
		engine:      engine,
		members:     members,
		auth:        auth,
		bus:         bus,
		presence:    tracker,
		log:         log,
	}
}

// Router builds the chi.Router exposing invitation and conduit endpoints
// under /organizations/{org}/invitations.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLogger(s.log))
	r.Use(httpmw.AccessLog(s.log))
	r.Use(chimw.Recoverer)

	r.Route("/organizations/{org}", func(r chi.Router) {
		r.Route("/invitations", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(RequireGreeter(s.members, s.auth))
				r.Post("/", s.handleInviteNew)
				r.Get("/", s.handleInviteList)
				r.Delete("/{token}", s.handleInviteDelete)
				r.Get("/{token}", s.handleInviteInfo)
				for rpc, spec := range rpcTable {
					if spec.side == conduit.SideGreeter {
						r.Post("/{token}/steps/"+rpc, s.handleConduitStep(rpc))
					}
				}
			})

			r.Group(func(r chi.Router) {
				for rpc, spec := range rpcTable {
					if spec.side == conduit.SideClaimer {
						r.Post("/{token}/steps/"+rpc, s.handleConduitStep(rpc))
					}
				}
			})
		})
	})

	return r
}
