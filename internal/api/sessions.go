package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/wargame/internal/checkpoint"
	"github.com/ashureev/wargame/internal/domain"
	"github.com/ashureev/wargame/internal/identity"
	"github.com/ashureev/wargame/internal/wargame"
)

// Routes registers the session API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.listSessions)
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Put("/roles", h.assignRoles)
			r.Post("/scenario", h.startScenario)
			r.Get("/interactions", h.listQueue)
			r.Post("/interactions", h.enqueue)
			r.Delete("/interactions/{index}", h.dequeue)
			r.Post("/process", h.process)
			r.Get("/checkpoints", h.listCheckpoints)
			r.Post("/checkpoints", h.checkpoint)
			r.Post("/rollback", h.rollback)
			r.Get("/history", h.history)
			r.Get("/transcript.html", h.transcript)
		})
	})
	if h.hub != nil {
		r.Get("/ws/sessions/{id}", h.watch)
	}
}

func (h *Handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string][]string{"sessions": h.svc.List()})
}

func (h *Handler) createSession(w http.ResponseWriter, _ *http.Request) {
	snap := h.svc.Create()
	JSON(w, http.StatusCreated, map[string]string{"id": snap.ID})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get_session", err)
		return
	}
	JSON(w, http.StatusOK, snap)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, "delete_session", err)
		return
	}
	if h.hub != nil {
		h.hub.CloseSession(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

type rolesRequest struct {
	Roles string `json:"roles"`
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	var req rolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "assign_roles", err)
		return
	}
	players, err := h.svc.AssignRoles(chi.URLParam(r, "id"), req.Roles)
	if err != nil {
		h.writeError(w, r, "assign_roles", err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"players": players})
}

type scenarioRequest struct {
	Seed string `json:"seed"`
}

type transcriptResponse struct {
	Messages      []domain.Message `json:"messages"`
	CheckpointKey checkpoint.Key   `json:"checkpoint_key,omitempty"`
}

func (h *Handler) startScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "start_scenario", err)
		return
	}
	messages, key, err := h.svc.StartScenario(r.Context(), chi.URLParam(r, "id"), req.Seed)
	if err != nil {
		h.writeError(w, r, "start_scenario", err)
		return
	}
	JSON(w, http.StatusOK, transcriptResponse{Messages: messages, CheckpointKey: key})
}

type enqueueRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusBadRequest, "missing "+identity.PlayerHeaderName+" header")
		return
	}
	if h.limiter != nil && !h.limiter.Allow(id+":"+playerID) {
		h.logger.Warn("Rate limit exceeded", "session_id", id, "player_id", playerID, "ip", identity.IPFromRequest(r))
		Error(w, http.StatusTooManyRequests, "too many submissions, slow down")
		return
	}

	var req enqueueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "enqueue", err)
		return
	}
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		h.writeError(w, r, "enqueue", wargame.UserInputf("%v", err))
		return
	}
	in, err := h.svc.Enqueue(id, kind, playerID, req.Content)
	if err != nil {
		h.writeError(w, r, "enqueue", err)
		return
	}
	JSON(w, http.StatusCreated, in)
}

func (h *Handler) listQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.svc.Queue(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "queue", err)
		return
	}
	if queue == nil {
		queue = domain.Queue{}
	}
	JSON(w, http.StatusOK, map[string]any{"queue": queue})
}

func (h *Handler) dequeue(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, "dequeue", wargame.UserInputf("index must be an integer"))
		return
	}
	removed, err := h.svc.Dequeue(chi.URLParam(r, "id"), index)
	if err != nil {
		h.writeError(w, r, "dequeue", err)
		return
	}
	JSON(w, http.StatusOK, removed)
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	turn, err := h.svc.Process(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "process", err)
		return
	}
	JSON(w, http.StatusOK, turn)
}

func (h *Handler) checkpoint(w http.ResponseWriter, r *http.Request) {
	key, err := h.svc.Checkpoint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "checkpoint", err)
		return
	}
	JSON(w, http.StatusCreated, map[string]checkpoint.Key{"key": key})
}

func (h *Handler) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.Checkpoints(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "list_checkpoints", err)
		return
	}
	if infos == nil {
		infos = []checkpoint.Info{}
	}
	JSON(w, http.StatusOK, map[string]any{"checkpoints": infos})
}

type rollbackRequest struct {
	Key checkpoint.Key `json:"key"`
}

func (h *Handler) rollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "rollback", err)
		return
	}
	if req.Key == "" {
		h.writeError(w, r, "rollback", wargame.UserInputf("checkpoint key is required"))
		return
	}
	messages, err := h.svc.Rollback(r.Context(), chi.URLParam(r, "id"), req.Key)
	if err != nil {
		h.writeError(w, r, "rollback", err)
		return
	}
	JSON(w, http.StatusOK, transcriptResponse{Messages: messages, CheckpointKey: req.Key})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	messages, err := h.svc.History(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "history", err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	JSON(w, http.StatusOK, transcriptResponse{Messages: messages})
}

func (h *Handler) watch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Get(id); err != nil {
		h.writeError(w, r, "watch", err)
		return
	}
	h.hub.Serve(w, r, id)
}
