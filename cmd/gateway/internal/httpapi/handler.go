package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/pkg/ingest"
	"github.com/goldwatch/goldwatch/pkg/models"
)

// PriceReader serves the query endpoints, normally the cache-aside reader.
type PriceReader interface {
	Read(ctx context.Context) (models.RecordSet, error)
	ReadOne(ctx context.Context, typ string) (*models.PriceRecord, error)
}

// Producer pushes admin-submitted record sets into the ingest topic.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Handler struct {
	reader   PriceReader
	producer Producer
	logger   *zap.Logger
}

func NewHandler(reader PriceReader, producer Producer, logger *zap.Logger) *Handler {
	return &Handler{reader: reader, producer: producer, logger: logger}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/prices", h.listPrices)
	mux.HandleFunc("GET /api/prices/{type}", h.getPrice)
	mux.HandleFunc("POST /api/prices", h.submitPrices)
}

func (h *Handler) listPrices(w http.ResponseWriter, r *http.Request) {
	set, err := h.reader.Read(r.Context())
	if err != nil {
		h.logger.Error("Failed to read prices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read prices")
		return
	}
	if set == nil {
		set = models.RecordSet{}
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *Handler) getPrice(w http.ResponseWriter, r *http.Request) {
	typ := r.PathValue("type")

	rec, err := h.reader.ReadOne(r.Context(), typ)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown price type: "+typ)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read price", zap.String("type", typ), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read price")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// submitPrices accepts one record or a list, merges them over the current
// set and feeds the result into the ingest topic. The pipeline then diffs
// and fans out exactly as it does for fetched sets.
func (h *Handler) submitPrices(w http.ResponseWriter, r *http.Request) {
	incoming, err := decodeRecords(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(incoming) == 0 {
		writeError(w, http.StatusBadRequest, "empty record set")
		return
	}
	for i := range incoming {
		incoming[i].Type = normalizeType(incoming[i].Type)
		if incoming[i].UpdatedAt == "" {
			incoming[i].UpdatedAt = time.Now().Format(time.RFC3339)
		}
	}
	incoming, err = models.Normalize(incoming)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	current, err := h.reader.Read(r.Context())
	if err != nil {
		h.logger.Error("Failed to read current prices for merge", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read current prices")
		return
	}

	merged, err := models.Normalize(append(current, incoming...))
	if err != nil {
		h.logger.Error("Failed to merge record sets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to merge record sets")
		return
	}

	msg, err := ingest.Message(merged)
	if err != nil {
		h.logger.Error("Failed to encode record set", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encode record set")
		return
	}
	if err := h.producer.WriteMessages(r.Context(), msg); err != nil {
		h.logger.Error("Failed to produce record set", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to queue record set")
		return
	}

	h.logger.Info("Admin record set queued", zap.Int("records", len(incoming)))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// decodeRecords accepts both a single record object and an array of them.
func decodeRecords(r io.Reader) (models.RecordSet, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, err
	}
	var set models.RecordSet
	if err := json.Unmarshal(raw, &set); err == nil {
		return set, nil
	}
	var one models.PriceRecord
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return models.RecordSet{one}, nil
}

// normalizeType maps bare suffixes like "1" onto the canonical "gold_1" key.
func normalizeType(typ string) string {
	typ = strings.TrimSpace(typ)
	if typ == "" || strings.HasPrefix(typ, "gold_") {
		return typ
	}
	return "gold_" + typ
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
