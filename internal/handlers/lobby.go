// internal/handlers/lobby.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/lobby"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// defaultCreate fills fields a client omits when creating a lobby.
var defaultCreate = lobby.CreateParams{
	NbPlayers: 2,
	Mode:      models.ModeClassic,
	Map:       models.MapClassic,
}

// CreateLobbyHandler opens a lobby owned by the caller.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	p := defaultCreate
	if err := decodeBody(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad lobby request payload"})
		return
	}
	l, err := s.lobbies.Create(r.Context(), userFrom(r.Context()), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// ListLobbiesHandler lists lobbies, optionally filtered by ?state=A,B. Private lobbies are only
// listed to their members.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	var states []models.LobbyState
	if raw := r.URL.Query().Get("state"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := models.LobbyState(strings.ToUpper(strings.TrimSpace(part)))
			if !st.Valid() {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown lobby state " + part})
				return
			}
			states = append(states, st)
		}
	}
	ls, err := s.lobbies.List(r.Context(), states...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := userFrom(r.Context())
	visible := make([]*models.Lobby, 0, len(ls))
	for _, l := range ls {
		if !l.Private || l.Member(userID) != nil {
			visible = append(visible, l)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

// MyLobbyHandler returns the caller's lobby.
func (s *Server) MyLobbyHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobbies.FindForUser(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// MapsHandler lists the playable maps.
func (s *Server) MapsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lobbies.Maps())
}

func (s *Server) GetLobbyHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobbies.Get(r.Context(), lobbyFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobbies.Join(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.lobbies.Leave(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type targetRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (s *Server) decodeTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req targetRequest
	if err := decodeBody(r, &req); err != nil || req.UserID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return uuid.Nil, false
	}
	return req.UserID, true
}

// KickHandler lets the owner remove a member.
func (s *Server) KickHandler(w http.ResponseWriter, r *http.Request) {
	target, ok := s.decodeTarget(w, r)
	if !ok {
		return
	}
	if err := s.lobbies.Kick(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()), target); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InviteHandler lets the owner invite a player.
func (s *Server) InviteHandler(w http.ResponseWriter, r *http.Request) {
	target, ok := s.decodeTarget(w, r)
	if !ok {
		return
	}
	inv, err := s.lobbies.Invite(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()), target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) ChangeTeamHandler(w http.ResponseWriter, r *http.Request) {
	m, err := s.lobbies.ChangeTeam(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) ChangePrivacyHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobbies.ChangePrivacy(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) ChangeReadyHandler(w http.ResponseWriter, r *http.Request) {
	m, err := s.lobbies.ChangeReady(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// StartGameHandler starts the match, or parks a public lobby in matchmaking.
func (s *Server) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobbies.StartGame(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type paddleRequest struct {
	Paddle models.PaddleType `json:"paddle"`
}

func (s *Server) SelectPaddleHandler(w http.ResponseWriter, r *http.Request) {
	var req paddleRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad paddle payload"})
		return
	}
	m, err := s.lobbies.SelectPaddle(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()), req.Paddle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type voteRequest struct {
	Map models.MapName `json:"map"`
}

func (s *Server) VoteMapHandler(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad vote payload"})
		return
	}
	votes, err := s.lobbies.VoteMap(r.Context(), lobbyFrom(r.Context()), userFrom(r.Context()), req.Map)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

func (s *Server) VotesHandler(w http.ResponseWriter, r *http.Request) {
	votes, err := s.lobbies.Votes(r.Context(), lobbyFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}
