package reports

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"crowdwatch/internal/api"
	"crowdwatch/internal/auth"
	"crowdwatch/internal/realtime"
)

const (
	statsWindow = 30 * 24 * time.Hour
	recentCount = 5
)

// AdminHandler serves /api/admin. Every route sits behind RequireRole(admin).
type AdminHandler struct {
	Common
	Validate *validator.Validate
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	f := ParseListFilter(r.URL.Query(), DefaultAdminLimit)
	rs, total, err := h.Store.List(r.Context(), f)
	if err != nil {
		api.ServerError(w, h.Logger, "Server error fetching reports", err)
		return
	}
	h.respondList(r.Context(), w, f, rs, total)
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.UserFromContext(r.Context())
	var in AdminStatusInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !ValidStatus(in.Status) {
		api.Error(w, http.StatusBadRequest, "Invalid status provided")
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		api.Error(w, http.StatusBadRequest, api.ValidationMessage(err))
		return
	}
	if in.AdminNotes != nil && *in.AdminNotes == "" {
		in.AdminNotes = nil
	}

	rep, err := h.Store.SetStatus(r.Context(), reportID(r), StatusChange{
		Status:     Status(in.Status),
		AdminNotes: in.AdminNotes,
		AdminID:    admin.ID,
		At:         nowUTC(),
	})
	if err != nil {
		if isNotFound(err) {
			notFound(w)
			return
		}
		api.ServerError(w, h.Logger, "Server error updating report status", err)
		return
	}
	h.Logger.WithFields(logrus.Fields{"report_id": rep.ID, "admin_id": admin.ID, "status": rep.Status}).Info("report status updated")

	h.populateOne(r.Context(), rep)
	h.changed(r.Context(), realtime.ReportUpdated, rep)
	respondReport(w, http.StatusOK, "Report status updated successfully", rep)
}

func (h *AdminHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var in AssignInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.AdminID == "" {
		api.Error(w, http.StatusBadRequest, "Invalid admin ID provided")
		return
	}
	target, err := h.Directory.GetByID(r.Context(), in.AdminID)
	if err != nil && !errors.Is(err, auth.ErrUserNotFound) {
		api.ServerError(w, h.Logger, "Server error assigning report", err)
		return
	}
	if err != nil || !target.IsAdmin() {
		api.Error(w, http.StatusBadRequest, "Invalid admin ID provided")
		return
	}

	rep, err := h.Store.Assign(r.Context(), reportID(r), target.ID, nowUTC())
	if err != nil {
		if isNotFound(err) {
			notFound(w)
			return
		}
		api.ServerError(w, h.Logger, "Server error assigning report", err)
		return
	}
	h.Logger.WithFields(logrus.Fields{"report_id": rep.ID, "assignee": target.ID}).Info("report assigned")

	h.populateOne(r.Context(), rep)
	h.changed(r.Context(), realtime.ReportUpdated, rep)
	respondReport(w, http.StatusOK, "Report assigned successfully", rep)
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Store.Delete(r.Context(), reportID(r))
	if err != nil {
		if isNotFound(err) {
			notFound(w)
			return
		}
		api.ServerError(w, h.Logger, "Server error deleting report", err)
		return
	}
	h.removePhoto(r.Context(), deleted)
	h.changed(r.Context(), realtime.ReportDeleted, deleted.ID)
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Report deleted successfully",
	})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		st  Stats
		key string
	)
	if h.Cache != nil {
		key = h.statsKey(ctx)
		hit, err := h.Cache.Load(ctx, key, &st)
		if err != nil {
			h.Logger.WithError(err).Warn("load stats cache")
		}
		if hit {
			api.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
			return
		}
	}

	fresh, err := h.Store.Stats(ctx, nowUTC().Add(-statsWindow), recentCount)
	if err != nil {
		api.ServerError(w, h.Logger, "Server error fetching statistics", err)
		return
	}
	h.populateRecent(r, fresh.Recent)

	if h.Cache != nil && h.StatsTTL > 0 {
		if err := h.Cache.Save(ctx, key, fresh, h.StatsTTL); err != nil {
			h.Logger.WithError(err).Warn("save stats cache")
		}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "stats": fresh})
}

func (h *AdminHandler) populateRecent(r *http.Request, recent []RecentReport) {
	ids := make([]string, 0, len(recent))
	for _, rr := range recent {
		ids = append(ids, rr.UserID)
	}
	if len(ids) == 0 {
		return
	}
	users, err := h.Directory.GetByIDs(r.Context(), ids)
	if err != nil {
		h.Logger.WithError(err).Warn("populate recent reports")
		return
	}
	for i := range recent {
		if u, ok := users[recent[i].UserID]; ok {
			recent[i].User = &UserRef{ID: u.ID, Username: u.Username}
		}
	}
}
