package enrich

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"crowdwatch/internal/api"
	"crowdwatch/internal/uploads"
)

const maxClassifyUpload = 5 << 20

// Handler exposes the enrichment services to signed-in users.
type Handler struct {
	Geocoder   *Geocoder
	Classifier *Classifier
	Translator *Translator
	Validate   *validator.Validate
	Logger     logrus.FieldLogger
}

func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		api.Error(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}
	address, err := h.Geocoder.Reverse(r.Context(), lat, lng)
	switch {
	case errors.Is(err, ErrNotConfigured):
		api.Error(w, http.StatusServiceUnavailable, "Geocoding is not available")
		return
	case errors.Is(err, ErrNoAddress):
		api.Error(w, http.StatusNotFound, "No address found for this location")
		return
	case err != nil:
		h.Logger.WithError(err).Warn("reverse geocode")
		api.Error(w, http.StatusBadGateway, "Could not look up the address, please type it in")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "address": address})
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	if !h.Classifier.Enabled() {
		api.Error(w, http.StatusServiceUnavailable, "Image analysis is not available")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxClassifyUpload+1<<20)
	if err := r.ParseMultipartForm(maxClassifyUpload); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fh, err := r.FormFile("image")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "Please upload a photo")
		return
	}
	defer file.Close()
	if err := uploads.Check(fh, file, maxClassifyUpload); err != nil {
		switch {
		case errors.Is(err, uploads.ErrNotImage):
			api.Error(w, http.StatusBadRequest, "Only image files are allowed!")
		case errors.Is(err, uploads.ErrTooLarge):
			api.Error(w, http.StatusBadRequest, "File too large. Maximum size is 5MB")
		default:
			api.ServerError(w, h.Logger, "Server error analysing image", err)
		}
		return
	}

	s, err := h.Classifier.Analyze(r.Context(), fh.Filename, file)
	if err != nil {
		h.Logger.WithError(err).Warn("classify image")
		api.Error(w, http.StatusBadGateway, "Image analysis failed, please fill in the details yourself")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "suggestion": s})
}

type translateInput struct {
	Text   string `json:"text" validate:"required,max=5000"`
	Target string `json:"target" validate:"required,oneof=en hi mr"`
	Source string `json:"source" validate:"omitempty,oneof=en hi mr"`
}

func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	var in translateInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.Target = strings.ToLower(strings.TrimSpace(in.Target))
	in.Source = strings.ToLower(strings.TrimSpace(in.Source))
	if err := h.Validate.Struct(in); err != nil {
		api.Error(w, http.StatusBadRequest, api.ValidationMessage(err))
		return
	}
	res, err := h.Translator.Translate(r.Context(), in.Text, in.Target, in.Source)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "Unsupported language")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "translation": res})
}
