package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"preset-labels/label"
)

// getLabels answers with a JSON array, or null when nothing is stored.
func (h *handler) getLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.labels.GetLabels(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, labels)
}

func (h *handler) addLabels(w http.ResponseWriter, r *http.Request) {
	var labels []string
	if err := json.NewDecoder(r.Body).Decode(&labels); err != nil || labels == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.labels.AddLabels(r.Context(), labels); err != nil {
		h.fail(w, r, err)
		return
	}
	h.getLabels(w, r)
}

func (h *handler) removeLabel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "label")
	// chi routes on RawPath when the request carried escapes like %2F.
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			http.Error(w, "invalid label", http.StatusBadRequest)
			return
		}
	}
	if err := h.labels.RemoveLabel(r.Context(), name); err != nil {
		h.fail(w, r, err)
		return
	}
	h.getLabels(w, r)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, label.ErrParse):
		http.Error(w, "stored labels are corrupt", http.StatusInternalServerError)
	case errors.Is(err, label.ErrStorageUnavailable):
		h.log.Error("label storage failed", "path", r.URL.Path, "error", err)
		http.Error(w, "label storage unavailable", http.StatusServiceUnavailable)
	default:
		h.log.Error("label request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
