package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TryOnTech0/server-api/internal/middleware"
	"github.com/TryOnTech0/server-api/internal/response"
	"github.com/TryOnTech0/server-api/internal/storage"
)

// multipartMemory is the part of a multipart body kept in memory; the rest spills to disk.
const multipartMemory = 32 << 20

// Handler serves the REST surface of one asset kind.
type Handler struct {
	svc        *Service
	kind       Kind
	maxUpload  int64
	production bool
}

// NewHandler creates a Handler for kind. maxUpload bounds request bodies on upload.
func NewHandler(svc *Service, kind Kind, maxUpload int64, production bool) *Handler {
	return &Handler{svc: svc, kind: kind, maxUpload: maxUpload, production: production}
}

// Routes mounts the kind's endpoints. write wraps the mutating routes and may be nil.
func (h *Handler) Routes(write func(http.Handler) http.Handler) chi.Router {
	if write == nil {
		write = func(next http.Handler) http.Handler { return next }
	}
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/path", h.Path)
	r.With(write).Post("/", h.Upload)
	r.With(write).Delete("/{id}", h.Delete)
	return r
}

type locationResponse struct {
	Success bool `json:"success" example:"true"`
	*Location
}

// Upload godoc
//
//	@Summary		Upload asset
//	@Description	Stores a file on the chosen backend and creates its record. The file goes in the kind's field (image, data or model) or in "file". OBJ models get geometry metadata.
//	@Tags			assets
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			image		formData	file	false	"Image file (images)"
//	@Param			data		formData	file	false	"Integer array file (int-arrays)"
//	@Param			model		formData	file	false	"3D model file (models)"
//	@Param			storageType	formData	string	false	"local or remote"
//	@Param			description	formData	string	false	"Free text description"
//	@Param			tags		formData	string	false	"Comma separated or JSON array of tags"
//	@Param			metadata	formData	string	false	"JSON object of extra fields"
//	@Success		201			{object}	response.Envelope{data=Record}
//	@Failure		400			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/images [post]
//	@Router			/int-arrays [post]
//	@Router			/models [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		if r.ContentLength > h.maxUpload {
			h.tooLarge(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.tooLarge(w)
		case errors.Is(err, http.ErrNotMultipart):
			h.writeError(w, fmt.Errorf("%w: no file uploaded", ErrInput))
		default:
			h.writeError(w, fmt.Errorf("%w: malformed multipart form: %v", ErrInput, err))
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(h.kind.FormField())
	if errors.Is(err, http.ErrMissingFile) {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: no file uploaded", ErrInput))
		return
	}
	defer file.Close()

	storageKind, err := storage.ParseKind(r.FormValue("storageType"), "")
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", ErrInput, err))
		return
	}
	tags, err := parseTags(r.FormValue("tags"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	extra, err := parseExtra(r.FormValue("metadata"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.svc.Upload(r.Context(), Upload{
		Kind:         h.kind,
		File:         file,
		OriginalName: header.Filename,
		Size:         header.Size,
		ContentType:  header.Header.Get("Content-Type"),
		StorageKind:  storageKind,
		OwnerID:      middleware.UserID(r.Context()),
		Description:  strings.TrimSpace(r.FormValue("description")),
		Tags:         tags,
		Extra:        extra,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	uploader := middleware.Username(r.Context())
	if uploader == "" {
		uploader = AnonymousOwner
	}
	log.Printf("asset: uploaded %s id=%s storage=%s size=%d by=%s", h.kind, rec.ID, rec.StorageKind, rec.Metadata.Size, uploader)
	response.Created(w, rec)
}

// List godoc
//
//	@Summary		List assets
//	@Description	Returns one page of records, newest first.
//	@Tags			assets
//	@Produce		json
//	@Param			page	query		int		false	"Page number (default 1)"
//	@Param			limit	query		int		false	"Page size (default 10, max 100)"
//	@Param			search	query		string	false	"Matches original name or description"
//	@Param			format	query		string	false	"File format, e.g. obj"
//	@Param			tag		query		string	false	"Tag filter"
//	@Success		200		{object}	response.Envelope{data=Page}
//	@Failure		500		{object}	response.Envelope
//	@Router			/images [get]
//	@Router			/int-arrays [get]
//	@Router			/models [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.List(r.Context(), h.kind, ListQuery{
		Page:   atoiOrZero(q.Get("page")),
		Limit:  atoiOrZero(q.Get("limit")),
		Search: q.Get("search"),
		Format: q.Get("format"),
		Tag:    q.Get("tag"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, page)
}

// Get godoc
//
//	@Summary		Download asset
//	@Description	Streams the asset's bytes from whichever backend holds them.
//	@Tags			assets
//	@Produce		octet-stream
//	@Param			id	path		string	true	"Asset ID"
//	@Success		200	{file}		binary
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images/{id} [get]
//	@Router			/int-arrays/{id} [get]
//	@Router			/models/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Open(r.Context(), h.kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer c.Body.Close()

	w.Header().Set("Content-Type", c.ContentType)
	if c.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(c.Size, 10))
	}
	if name := c.Record.OriginalName; name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, c.Body); err != nil {
		log.Printf("asset: stream %s id=%s interrupted: %v", h.kind, c.Record.ID, err)
	}
}

// Path godoc
//
//	@Summary		Locate asset
//	@Description	Returns the storage path, public URL and metadata without the bytes.
//	@Tags			assets
//	@Produce		json
//	@Param			id	path		string	true	"Asset ID"
//	@Success		200	{object}	locationResponse
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/images/{id}/path [get]
//	@Router			/int-arrays/{id}/path [get]
//	@Router			/models/{id}/path [get]
func (h *Handler) Path(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.Locate(r.Context(), h.kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, locationResponse{Success: true, Location: loc})
}

// Delete godoc
//
//	@Summary		Delete asset
//	@Description	Removes the stored bytes (best effort) and then the record.
//	@Tags			assets
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Asset ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images/{id} [delete]
//	@Router			/int-arrays/{id} [delete]
//	@Router			/models/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.kind, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w)
}

// writeError maps service errors to status codes. Details are only exposed outside production.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("asset: %s request failed: %v", h.kind, err)
	}
	if h.production || msg == err.Error() {
		response.Error(w, status, msg)
		return
	}
	response.ErrorDetails(w, status, msg, err.Error())
}

func (h *Handler) tooLarge(w http.ResponseWriter) {
	response.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInput), errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrFileNotFound):
		return http.StatusNotFound, ErrFileNotFound.Error()
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrNotFound.Error()
	case errors.Is(err, ErrNotRetrievable):
		return http.StatusInternalServerError, ErrNotRetrievable.Error()
	case errors.Is(err, ErrBackend):
		return http.StatusInternalServerError, ErrBackend.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// parseTags accepts a JSON array or a comma separated list.
func parseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("%w: tags must be a JSON array of strings", ErrInput)
		}
		return tags, nil
	}
	return strings.Split(raw, ","), nil
}

func parseExtra(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object", ErrInput)
	}
	return extra, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
