package reports

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"crowdwatch/internal/api"
	"crowdwatch/internal/auth"
	"crowdwatch/internal/realtime"
	"crowdwatch/internal/uploads"
)

const defaultMaxUpload = 5 << 20

// Handler serves /api/reports for the report's owner.
type Handler struct {
	Common
	Validate  *validator.Validate
	MaxUpload int64
}

func (h *Handler) maxUpload() int64 {
	if h.MaxUpload > 0 {
		return h.MaxUpload
	}
	return defaultMaxUpload
}

func (h *Handler) tooLarge(w http.ResponseWriter) {
	api.Error(w, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %dMB", h.maxUpload()>>20))
}

// Create accepts a multipart form with the report fields and a "photo" file.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	limit := h.maxUpload()

	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.tooLarge(w)
			return
		}
		api.Error(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	latStr := strings.TrimSpace(r.FormValue("latitude"))
	lngStr := strings.TrimSpace(r.FormValue("longitude"))
	category := strings.TrimSpace(r.FormValue("category"))
	if title == "" || description == "" || latStr == "" || lngStr == "" || category == "" {
		api.Error(w, http.StatusBadRequest, "Please provide all required fields")
		return
	}

	file, fh, err := r.FormFile("photo")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "Please upload a photo")
		return
	}
	defer file.Close()
	if err := uploads.Check(fh, file, limit); err != nil {
		switch {
		case errors.Is(err, uploads.ErrTooLarge):
			h.tooLarge(w)
		case errors.Is(err, uploads.ErrNotImage):
			api.Error(w, http.StatusBadRequest, "Only image files are allowed!")
		default:
			api.ServerError(w, h.Logger, "Server error creating report", err)
		}
		return
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil {
		api.Error(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}
	in := CreateInput{
		Title:              title,
		Description:        description,
		Latitude:           &lat,
		Longitude:          &lng,
		Address:            strings.TrimSpace(r.FormValue("address")),
		Category:           category,
		AdditionalComments: strings.TrimSpace(r.FormValue("additionalComments")),
	}
	if err := h.Validate.Struct(in); err != nil {
		api.Error(w, http.StatusBadRequest, api.ValidationMessage(err))
		return
	}

	photoURL, err := h.Uploads.Save(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), file)
	if err != nil {
		api.ServerError(w, h.Logger, "Server error creating report", err)
		return
	}
	rep := &Report{
		UserID:             user.ID,
		Title:              in.Title,
		Description:        in.Description,
		PhotoURL:           photoURL,
		Location:           Location{Latitude: lat, Longitude: lng, Address: in.Address},
		Category:           Category(in.Category),
		Status:             StatusSubmitted,
		AdditionalComments: in.AdditionalComments,
	}
	if err := h.Store.Create(r.Context(), rep); err != nil {
		h.removePhoto(r.Context(), rep)
		api.ServerError(w, h.Logger, "Server error creating report", err)
		return
	}
	h.Logger.WithFields(logrus.Fields{"report_id": rep.ID, "user_id": user.ID}).Info("report created")

	h.populateOne(r.Context(), rep)
	h.changed(r.Context(), realtime.ReportCreated, rep)
	respondReport(w, http.StatusCreated, "Report created successfully", rep)
}

// Mine lists the caller's reports, newest first.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	f := ParseListFilter(r.URL.Query(), DefaultUserLimit)
	f.UserID = user.ID
	f.Status, f.Category = "", ""
	f.SortBy, f.Desc = "createdAt", true

	rs, total, err := h.Store.List(r.Context(), f)
	if err != nil {
		api.ServerError(w, h.Logger, "Server error fetching reports", err)
		return
	}
	h.respondList(r.Context(), w, f, rs, total)
}

// owned loads the report and hides it from anyone but its owner.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request, action string) (*Report, bool) {
	user, _ := auth.UserFromContext(r.Context())
	rep, err := h.Store.Get(r.Context(), reportID(r))
	if err != nil {
		if isNotFound(err) {
			notFound(w)
			return nil, false
		}
		api.ServerError(w, h.Logger, "Server error "+action+" report", err)
		return nil, false
	}
	if rep.UserID != user.ID {
		notFound(w)
		return nil, false
	}
	return rep, true
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.owned(w, r, "fetching")
	if !ok {
		return
	}
	h.populateOne(r.Context(), rep)
	respondReport(w, http.StatusOK, "", rep)
}

// TouchStatus lets an owner flag activity on a report. A recognised status
// bumps statusUpdatedAt; the status itself only changes through admins.
func (h *Handler) TouchStatus(w http.ResponseWriter, r *http.Request) {
	var in OwnerStatusInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rep, ok := h.owned(w, r, "updating")
	if !ok {
		return
	}
	if ValidStatus(in.Status) {
		updated, err := h.Store.Touch(r.Context(), rep.ID, nowUTC())
		if err != nil {
			if isNotFound(err) {
				notFound(w)
				return
			}
			api.ServerError(w, h.Logger, "Server error updating report", err)
			return
		}
		rep = updated
		h.populateOne(r.Context(), rep)
		h.changed(r.Context(), realtime.ReportUpdated, rep)
	} else {
		h.populateOne(r.Context(), rep)
	}
	respondReport(w, http.StatusOK, "Report updated successfully", rep)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.owned(w, r, "deleting")
	if !ok {
		return
	}
	deleted, err := h.Store.Delete(r.Context(), rep.ID)
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
