// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/auth"
	"github.com/jason-s-yu/pongarena/internal/game"
	"github.com/jason-s-yu/pongarena/internal/lobby"
	"github.com/jason-s-yu/pongarena/internal/middleware"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/jason-s-yu/pongarena/internal/realtime"
	"github.com/sirupsen/logrus"
)

// Matches routes in-match input. Input from users outside a match is dropped.
type Matches interface {
	ReadyToPlay(userID uuid.UUID) bool
	Command(userID uuid.UUID, cmd game.Command) bool
	SendGameInfo(userID uuid.UUID) bool
	Disconnect(userID uuid.UUID)
}

// MatchHistory serves finished matches.
type MatchHistory interface {
	RecentMatches(ctx context.Context, limit int) ([]models.MatchRecord, error)
}

// Server holds the collaborators of the HTTP and websocket endpoints.
type Server struct {
	lobbies *lobby.Service
	matches Matches
	hub     *realtime.Hub
	auth    *auth.Issuer
	history MatchHistory
	log     logrus.FieldLogger
}

// NewServer wires the endpoints. history may be nil.
func NewServer(lobbies *lobby.Service, matches Matches, hub *realtime.Hub, issuer *auth.Issuer, history MatchHistory, log logrus.FieldLogger) *Server {
	return &Server{
		lobbies: lobbies,
		matches: matches,
		hub:     hub,
		auth:    issuer,
		history: history,
		log:     log,
	}
}

// Routes builds the router. allowedOrigins feeds CORS; "*" allows any origin.
func (s *Server) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(s.log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/guest", s.GuestHandler)
	r.Get("/ws", s.WSHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Get("/me", s.MeHandler)
		r.Get("/matches", s.ListMatchesHandler)

		r.Route("/lobbies", func(r chi.Router) {
			r.Get("/", s.ListLobbiesHandler)
			r.Post("/", s.CreateLobbyHandler)
			r.Get("/mine", s.MyLobbyHandler)
			r.Get("/maps", s.MapsHandler)

			r.Route("/{lobbyID}", func(r chi.Router) {
				r.Use(s.lobbyParam)
				r.Get("/", s.GetLobbyHandler)
				r.Post("/join", s.JoinLobbyHandler)
				r.Post("/leave", s.LeaveLobbyHandler)
				r.Post("/kick", s.KickHandler)
				r.Post("/team", s.ChangeTeamHandler)
				r.Post("/privacy", s.ChangePrivacyHandler)
				r.Post("/ready", s.ChangeReadyHandler)
				r.Post("/invite", s.InviteHandler)
				r.Post("/start", s.StartGameHandler)
				r.Post("/paddle", s.SelectPaddleHandler)
				r.Post("/vote", s.VoteMapHandler)
				r.Get("/votes", s.VotesHandler)
			})
		})
	})
	return r
}

type ctxKey int

const (
	userKey ctxKey = iota
	lobbyKey
)

// requireUser rejects requests without a valid token and stores the caller's id in the context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.Authenticate(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or missing auth token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, userID)))
	})
}

func (s *Server) lobbyParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lobbyID, err := uuid.Parse(chi.URLParam(r, "lobbyID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid lobby id"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), lobbyKey, lobbyID)))
	})
}

func userFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userKey).(uuid.UUID)
	return id
}

func lobbyFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(lobbyKey).(uuid.UUID)
	return id
}

// GuestHandler issues a token for a fresh player id, unless the caller already holds a valid one.
func (s *Server) GuestHandler(w http.ResponseWriter, r *http.Request) {
	if userID, err := s.auth.Authenticate(r); err == nil {
		writeJSON(w, http.StatusOK, guestResponse{UserID: userID})
		return
	}
	userID := uuid.New()
	token, err := s.auth.Issue(userID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	auth.SetCookie(w, token)
	writeJSON(w, http.StatusCreated, guestResponse{UserID: userID, Token: token})
}

type guestResponse struct {
	UserID uuid.UUID `json:"userId"`
	Token  string    `json:"token,omitempty"`
}

// MeHandler returns the caller's id and current lobby, if any.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	resp := meResponse{UserID: userID, Connected: s.hub.Connected(userID)}
	l, err := s.lobbies.FindForUser(r.Context(), userID)
	switch {
	case err == nil:
		resp.LobbyID = &l.ID
	case lobby.KindOf(err) != lobby.KindNotFound:
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type meResponse struct {
	UserID    uuid.UUID  `json:"userId"`
	LobbyID   *uuid.UUID `json:"lobbyId"`
	Connected bool       `json:"connected"`
}

// ListMatchesHandler serves recent finished matches.
func (s *Server) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []models.MatchRecord{})
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 100"})
		return
	}
	recs, err := s.history.RecentMatches(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
