package httpserver

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hbnb_api/internal/app"
	"hbnb_api/internal/domain"
)

const (
	msgNotFound = "Not found"
	msgNotJSON  = "Not a JSON"
	msgInternal = "Internal Server Error"

	maxBody = 1 << 20
)

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
}

type errorBody struct {
	Error string `json:"error"`
}

// MountHandlers registers the /api/v1 routes; every request under it gets
// its own engine from p.
func (s *Server) MountHandlers(h *Handlers, p domain.Provider) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api/v1", func(r chi.Router) {
		r.Use(Storage(p))

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, map[string]string{"status": "OK"})
		})
		r.Get("/stats", h.stats)

		r.Get("/states", h.list(domain.KindState))
		r.Post("/states", h.create(domain.KindState, ""))
		h.item(r, "/states/{id}", domain.KindState)
		r.Get("/states/{id}/cities", h.children(domain.KindState, domain.KindCity))
		r.Post("/states/{id}/cities", h.create(domain.KindCity, domain.KindState))
		h.item(r, "/cities/{id}", domain.KindCity)

		r.Get("/amenities", h.list(domain.KindAmenity))
		r.Post("/amenities", h.create(domain.KindAmenity, ""))
		h.item(r, "/amenities/{id}", domain.KindAmenity)

		r.Get("/users", h.list(domain.KindUser))
		r.Post("/users", h.create(domain.KindUser, ""))
		h.item(r, "/users/{id}", domain.KindUser)

		r.Get("/cities/{id}/places", h.children(domain.KindCity, domain.KindPlace))
		r.Post("/cities/{id}/places", h.create(domain.KindPlace, domain.KindCity))
		h.item(r, "/places/{id}", domain.KindPlace)

		r.Get("/places/{id}/reviews", h.children(domain.KindPlace, domain.KindReview))
		r.Post("/places/{id}/reviews", h.create(domain.KindReview, domain.KindPlace))
		h.item(r, "/reviews/{id}", domain.KindReview)

		r.Get("/places/{id}/amenities", h.placeAmenities)
		r.Post("/places/{id}/amenities/{amenity_id}", h.linkAmenity)
		r.Delete("/places/{id}/amenities/{amenity_id}", h.unlinkAmenity)
	})
}

func (h *Handlers) item(r chi.Router, pattern string, kind domain.Kind) {
	r.Get(pattern, h.get(kind))
	r.Put(pattern, h.update(kind))
	r.Delete(pattern, h.remove(kind))
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.Stats(r.Context(), EngineFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handlers) list(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.Q.List(r.Context(), EngineFrom(r.Context()), kind)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

func (h *Handlers) children(parent, child domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		out, err := h.Q.ListChildren(ctx, EngineFrom(ctx), parent, chi.URLParam(r, "id"), child)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

func (h *Handlers) get(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		out, err := h.Q.Get(ctx, EngineFrom(ctx), kind, chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

// create handles both top-level and nested POSTs; parent is empty for the
// former.
func (h *Handlers) create(kind, parent domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readJSON(w, r)
		if !ok {
			return
		}
		var p *app.Parent
		if parent != "" {
			p = &app.Parent{Kind: parent, ID: chi.URLParam(r, "id")}
		}
		ctx := r.Context()
		out, err := h.C.Create(ctx, EngineFrom(ctx), kind, p, body)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, out)
	}
}

func (h *Handlers) update(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readJSON(w, r)
		if !ok {
			return
		}
		ctx := r.Context()
		out, err := h.C.Update(ctx, EngineFrom(ctx), kind, chi.URLParam(r, "id"), body)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}

func (h *Handlers) remove(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := h.C.Delete(ctx, EngineFrom(ctx), kind, chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, struct{}{})
	}
}

func (h *Handlers) placeAmenities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.Q.PlaceAmenities(ctx, EngineFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handlers) linkAmenity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, created, err := h.C.LinkAmenity(ctx, EngineFrom(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "amenity_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, out)
}

func (h *Handlers) unlinkAmenity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.C.UnlinkAmenity(ctx, EngineFrom(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "amenity_id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct{}{})
}

// readJSON decodes a JSON object body; anything else is answered with
// 400 "Not a JSON".
func readJSON(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	if !strings.Contains(r.Header.Get("Content-Type"), "json") {
		writeError(w, http.StatusBadRequest, msgNotJSON)
		return nil, false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, msgNotJSON)
		return nil, false
	}
	return body, true
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("request failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: msg}); err != nil {
		log.Error().Err(err).Msg("write JSON error response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	body := buf.Bytes()
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON writes v with a weak ETag; a GET whose If-None-Match matches is
// answered with 304 and no body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	if r.Method == http.MethodGet && status == http.StatusOK {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}
