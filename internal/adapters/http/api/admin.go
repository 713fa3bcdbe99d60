package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/edurating/internal/adapters/repository"
	service "github.com/okian/edurating/internal/app"
)

// AdminDependencies reloads configuration snapshots.
type AdminDependencies interface {
	Reload(ctx context.Context) (*repository.Snapshot, error)
}

// AdminHandler handles administrative requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type reloadResponse struct {
	Version  string         `json:"version"`
	Source   string         `json:"source"`
	LoadedAt time.Time      `json:"loaded_at"`
	Counts   map[string]int `json:"counts"`
}

// HandleReload handles POST /v1/admin/reload requests. A failed reload keeps
// the previous snapshot published.
func (h *AdminHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_reload"
	snap, err := h.deps.Reload(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotReady) {
			fail(w, Wrap(op, err))
			return
		}
		fail(w, WrapKind(op, ErrReload, err))
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{
		Version:  snap.Version,
		Source:   snap.Source,
		LoadedAt: snap.LoadedAt,
		Counts:   snap.Counts(),
	})
}
