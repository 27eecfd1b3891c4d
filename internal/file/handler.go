package file

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/filedrop/service/internal/response"
)

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc       *Service
	log       *zap.Logger
	maxMemory int64
}

// NewHandler creates a new file Handler. maxMemory bounds how much of a
// multipart upload is buffered in memory.
func NewHandler(svc *Service, log *zap.Logger, maxMemory int64) *Handler {
	return &Handler{svc: svc, log: log, maxMemory: maxMemory}
}

// Routes mounts the file endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Get("/files", h.List)
	r.Patch("/files/{id}", h.Rename)
	r.Delete("/files/{id}", h.Delete)
	r.Get("/files/{id}/download", h.Download)
}

type renameRequest struct {
	Filename string `json:"filename" example:"summary.pdf"`
}

type downloadData struct {
	URL string `json:"url" example:"http://localhost:9000/uploads/report.pdf?X-Amz-Expires=60"`
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores the file under its filename and records its metadata. Filenames are unique.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		200		{object}	File
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	src, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required")
		return
	}
	defer src.Close()

	f, err := h.svc.Upload(r.Context(), UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     src,
	})
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	response.OK(w, f)
}

// List godoc
//
//	@Summary		List files
//	@Description	Returns every file record.
//	@Tags			files
//	@Produce		json
//	@Success		200	{array}		File
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/files [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	response.OK(w, files)
}

// Rename godoc
//
//	@Summary		Rename a file
//	@Description	Moves the stored object to the new filename and updates the record. Renaming to the current name is a no-op.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"File ID"
//	@Param			request	body		renameRequest	true	"New filename"
//	@Success		200		{object}	response.MessageBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/files/{id} [patch]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Filename == "" {
		response.BadRequest(w, "New filename required")
		return
	}

	changed, err := h.svc.Rename(r.Context(), chi.URLParam(r, "id"), req.Filename)
	if err != nil {
		h.writeError(w, r, err, "storage rename failed: ")
		return
	}
	if !changed {
		response.Message(w, "Filename is already set to this value")
		return
	}
	response.Message(w, "Renamed")
}

// Delete godoc
//
//	@Summary		Delete a file
//	@Description	Removes the stored object and its record.
//	@Tags			files
//	@Produce		json
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	response.MessageBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/files/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	response.Message(w, "Deleted")
}

// Download godoc
//
//	@Summary		Get a download URL
//	@Description	Returns a presigned URL valid for 60 seconds. The caller fetches the bytes from object storage directly.
//	@Tags			files
//	@Produce		json
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	downloadData
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/files/{id}/download [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.DownloadURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	response.OK(w, downloadData{URL: u})
}

// writeError maps service errors onto status codes. Storage failures carry
// the backend message, prefixed with storagePrefix.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, storagePrefix string) {
	var storageErr *StorageError
	switch {
	case errors.Is(err, ErrFilenameRequired):
		response.BadRequest(w, "Filename required")
	case errors.Is(err, ErrAlreadyExists):
		response.BadRequest(w, "File with this filename already exists.")
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "File not found")
	case errors.As(err, &storageErr):
		h.log.Error("storage failure", zap.String("path", r.URL.Path), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, storagePrefix+storageErr.Err.Error())
	default:
		h.log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		response.InternalError(w)
	}
}
