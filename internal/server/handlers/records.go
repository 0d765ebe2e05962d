package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/fitsync/internal/models"
	"github.com/iudanet/fitsync/internal/server/storage"
	"github.com/iudanet/fitsync/internal/validation"
	"github.com/iudanet/fitsync/pkg/api"
)

// MaxRecordBodySize ограничивает размер тела PUT запроса
const MaxRecordBodySize = 1 << 20

// RecordsHandler handles versioned record requests
type RecordsHandler struct {
	logger  *slog.Logger
	storage storage.RecordStorage
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(logger *slog.Logger, storage storage.RecordStorage) *RecordsHandler {
	return &RecordsHandler{
		logger:  logger,
		storage: storage,
	}
}

// Get обрабатывает GET /api/v1/records/{type}/{id}
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := GetOwnerID(r.Context())
	if !ok {
		sendError(h.logger, w, "owner is not authenticated", http.StatusUnauthorized)
		return
	}

	entityType, id := r.PathValue("type"), r.PathValue("id")
	if err := validation.ValidateKey(entityType, id); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.storage.GetRecord(r.Context(), ownerID, entityType, id)
	if err != nil {
		h.handleStorageError(w, err, "get", entityType, id)
		return
	}

	sendJSON(h.logger, w, toAPIRecord(rec), http.StatusOK)
}

// Put обрабатывает PUT /api/v1/records/{type}/{id}
// Запись принимается, только если ее версия больше сохраненной
func (h *RecordsHandler) Put(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := GetOwnerID(r.Context())
	if !ok {
		sendError(h.logger, w, "owner is not authenticated", http.StatusUnauthorized)
		return
	}

	entityType, id := r.PathValue("type"), r.PathValue("id")

	var req api.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRecordBodySize)).Decode(&req); err != nil {
		h.logger.Warn("Invalid record body", "error", err)
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if msg := validateRecord(&req, entityType, id); msg != "" {
		sendError(h.logger, w, msg, http.StatusBadRequest)
		return
	}

	rec := fromAPIRecord(&req)
	// Владелец всегда берется из токена
	rec.OwnerID = ownerID
	rec.EntityType = entityType
	rec.ID = id

	stored, err := h.storage.UpsertRecord(r.Context(), rec)
	if err != nil {
		h.handleStorageError(w, err, "upsert", entityType, id)
		return
	}

	h.logger.Debug("Record stored",
		"owner_id", ownerID,
		"entity_type", entityType,
		"record_id", id,
		"version", stored.Version,
	)

	sendJSON(h.logger, w, toAPIRecord(stored), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/records/{type}/{id}?base_version=N
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := GetOwnerID(r.Context())
	if !ok {
		sendError(h.logger, w, "owner is not authenticated", http.StatusUnauthorized)
		return
	}

	entityType, id := r.PathValue("type"), r.PathValue("id")
	if err := validation.ValidateKey(entityType, id); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	baseVersion, err := strconv.ParseInt(r.URL.Query().Get("base_version"), 10, 64)
	if err != nil || baseVersion < 0 {
		sendError(h.logger, w, "base_version must be a non-negative integer", http.StatusBadRequest)
		return
	}

	if err := h.storage.DeleteRecord(r.Context(), ownerID, entityType, id, baseVersion); err != nil {
		h.handleStorageError(w, err, "delete", entityType, id)
		return
	}

	h.logger.Debug("Record deleted", "owner_id", ownerID, "entity_type", entityType, "record_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// handleStorageError переводит ошибки хранилища в HTTP ответы
func (h *RecordsHandler) handleStorageError(w http.ResponseWriter, err error, op, entityType, id string) {
	var conflict *storage.ConflictError

	switch {
	case errors.As(err, &conflict):
		resp := api.ConflictResponse{
			Current: toAPIRecord(conflict.Current),
			Error:   http.StatusText(http.StatusConflict),
			Message: err.Error(),
		}
		sendJSON(h.logger, w, resp, http.StatusConflict)
	case errors.Is(err, storage.ErrRecordNotFound):
		sendError(h.logger, w, "record not found", http.StatusNotFound)
	default:
		h.logger.Error("Record storage failed",
			"op", op,
			"entity_type", entityType,
			"record_id", id,
			"error", err,
		)
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
	}
}

// validateRecord возвращает описание проблемы или пустую строку
func validateRecord(rec *api.Record, entityType, id string) string {
	if err := validation.ValidateKey(entityType, id); err != nil {
		return err.Error()
	}

	switch {
	case rec.EntityType != "" && rec.EntityType != entityType:
		return "entity_type does not match path"
	case rec.ID != "" && rec.ID != id:
		return "id does not match path"
	case rec.Version <= 0:
		return "version must be positive"
	case len(rec.Payload) == 0 || !json.Valid(rec.Payload):
		return "payload must be valid JSON"
	}
	return ""
}

func toAPIRecord(rec *models.Record) *api.Record {
	if rec == nil {
		return nil
	}
	return &api.Record{
		UpdatedAt:  rec.UpdatedAt,
		ID:         rec.ID,
		OwnerID:    rec.OwnerID,
		EntityType: rec.EntityType,
		DeviceID:   rec.DeviceID,
		Payload:    rec.Payload,
		Version:    rec.Version,
	}
}

func fromAPIRecord(rec *api.Record) *models.Record {
	return &models.Record{
		UpdatedAt:  rec.UpdatedAt,
		ID:         rec.ID,
		OwnerID:    rec.OwnerID,
		EntityType: rec.EntityType,
		DeviceID:   rec.DeviceID,
		Payload:    rec.Payload,
		Version:    rec.Version,
	}
}
