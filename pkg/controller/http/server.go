package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/usecase"
	"github.com/wavelength-chat/wavelength/pkg/utils/errutil"
)

type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
	hub    *Hub
	issuer *SessionIssuer
	secure bool
}

type Options func(*Server)

// WithSecureCookies marks session cookies Secure (TLS deployments)
func WithSecureCookies(secure bool) Options {
	return func(s *Server) {
		s.secure = secure
	}
}

// New builds the REST and SSE surface over the use cases. The returned
// server's Hub must be wired into the use cases as their publisher.
func New(uc *usecase.UseCases, hub *Hub, issuer *SessionIssuer, opts ...Options) (*Server, error) {
	if uc == nil || hub == nil || issuer == nil {
		return nil, goerr.New("usecases, hub and session issuer are required")
	}

	s := &Server{
		router: chi.NewRouter(),
		uc:     uc,
		hub:    hub,
		issuer: issuer,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Post("/api/auth/login", s.loginHandler)

	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware(s.issuer, uc.Auth))

		r.Get("/api/auth/me", s.meHandler)
		r.Get("/api/user/{userID}", s.userHandler)

		r.Route("/api/workspace/{workspaceID}", func(r chi.Router) {
			r.Get("/events", s.streamHandler)
			r.Get("/users", s.rosterHandler)
			r.Post("/status", s.statusHandler)
		})

		r.Route("/api/channel/{channelID}/messages", func(r chi.Router) {
			r.Get("/", s.listMessagesHandler)
			r.Post("/", s.postMessageHandler)
			r.Delete("/{messageID}", s.deleteMessageHandler)
			r.Post("/{messageID}/reactions", s.toggleReactionHandler)
		})
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleUseCaseError maps the use case sentinels onto HTTP statuses
func handleUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, usecase.ErrChannelNotFound),
		errors.Is(err, usecase.ErrMessageNotFound),
		errors.Is(err, usecase.ErrWorkspaceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, usecase.ErrNotMember), errors.Is(err, usecase.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, usecase.ErrEmptyContent), errors.Is(err, usecase.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
	}
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string            `json:"username"`
		Workspace types.WorkspaceID `json:"workspace,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	user, err := s.uc.Auth.Login(r.Context(), req.Username)
	if err != nil {
		handleUseCaseError(w, r, err)
		return
	}
	if req.Workspace != "" {
		if err := s.uc.Auth.JoinWorkspace(r.Context(), req.Workspace, user.ID, types.UserRoleUser); err != nil {
			handleUseCaseError(w, r, err)
			return
		}
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(DefaultSessionTTL),
	})
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, userFromCtx(r.Context()))
}

func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.uc.Auth.GetUser(r.Context(), types.UserID(pathParam(r, "userID")))
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) rosterHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID := types.WorkspaceID(pathParam(r, "workspaceID"))
	records, err := s.uc.Presence.ActiveUsers(r.Context(), workspaceID)
	if err != nil {
		handleUseCaseError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": records})
}

// statusHandler accepts a client-authored status envelope. The user ID in
// the payload is overridden by the session identity so a client cannot
// spoof another user's presence.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID := types.WorkspaceID(pathParam(r, "workspaceID"))

	var env model.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "malformed envelope", http.StatusBadRequest)
		return
	}
	event, err := env.Classify()
	if err != nil {
		http.Error(w, "unrecognized envelope", http.StatusBadRequest)
		return
	}
	statusEvent, ok := event.(model.StatusEvent)
	if !ok {
		http.Error(w, "status envelope expected", http.StatusBadRequest)
		return
	}

	update := statusEvent.Update
	update.UserID = userFromCtx(r.Context()).ID

	if err := s.uc.Presence.SetStatus(r.Context(), workspaceID, update); err != nil {
		handleUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(pathParam(r, "channelID"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "malformed limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	page, err := s.uc.Chat.ListMessages(r.Context(), channelID, limit, cursor)
	if err != nil {
		handleUseCaseError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(pathParam(r, "channelID"))

	var req struct {
		Content string           `json:"content"`
		ReplyTo *types.MessageID `json:"replyTo,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed message", http.StatusBadRequest)
		return
	}

	msg, err := s.uc.Chat.PostMessage(r.Context(), userFromCtx(r.Context()), usecase.PostDraft{
		ChannelID: channelID,
		Content:   req.Content,
		ReplyTo:   req.ReplyTo,
	})
	if err != nil {
		handleUseCaseError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) deleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(pathParam(r, "channelID"))
	messageID := types.MessageID(pathParam(r, "messageID"))

	if err := s.uc.Chat.DeleteMessage(r.Context(), userFromCtx(r.Context()), channelID, messageID); err != nil {
		handleUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleReactionHandler(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(pathParam(r, "channelID"))
	messageID := types.MessageID(pathParam(r, "messageID"))

	var req struct {
		Kind types.ReactionKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Kind == "" {
		http.Error(w, "reaction kind is required", http.StatusBadRequest)
		return
	}

	if err := s.uc.Chat.ToggleReaction(r.Context(), userFromCtx(r.Context()), channelID, messageID, req.Kind); err != nil {
		handleUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
