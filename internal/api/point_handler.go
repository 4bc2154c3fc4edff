package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"pointflow/internal/domain"
	"pointflow/pkg/logger"
)

const maxBatchCommands = 1000

type PointHandler struct {
	points domain.PointService
	batch  domain.BatchService
	logger logger.Logger
}

func NewPointHandler(points domain.PointService, batch domain.BatchService, log logger.Logger) *PointHandler {
	return &PointHandler{
		points: points,
		batch:  batch,
		logger: log.WithFields(map[string]interface{}{"component": "point_handler"}),
	}
}

func (h *PointHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /point/stats", h.GetStats)
	mux.HandleFunc("POST /point/batch", h.ProcessBatch)
	mux.HandleFunc("GET /point/{id}", h.GetUserPoint)
	mux.HandleFunc("GET /point/{id}/histories", h.GetUserPointHistories)
	mux.HandleFunc("PATCH /point/{id}/charge", h.ChargeUserPoint)
	mux.HandleFunc("PATCH /point/{id}/use", h.UseUserPoint)
	mux.HandleFunc("POST /point/{id}/init", h.InitializeUserPoint)
}

func (h *PointHandler) GetUserPoint(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	point, err := h.points.GetUserPoint(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "Failed to get user point", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, point)
}

func (h *PointHandler) GetUserPointHistories(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	histories, err := h.points.GetUserPointHistories(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "Failed to get point histories", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, histories)
}

func (h *PointHandler) ChargeUserPoint(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.points.ChargeUserPoint)
}

func (h *PointHandler) UseUserPoint(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.points.UseUserPoint)
}

func (h *PointHandler) InitializeUserPoint(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	point, err := h.points.InitializeUserPoint(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "Failed to initialize user point", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, point)
}

type BatchRequest struct {
	Commands []domain.PointCommand `json:"commands"`
}

type BatchCommandResult struct {
	UserID    int64                  `json:"user_id"`
	Amount    int64                  `json:"amount"`
	Type      domain.TransactionType `json:"type"`
	UserPoint *domain.UserPoint      `json:"point,omitempty"`
	Error     *ErrorResponse         `json:"error,omitempty"`
}

type BatchResponse struct {
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []BatchCommandResult `json:"results"`
}

func (h *PointHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "Could not decode batch request", map[string]interface{}{"error": err.Error()})
		writeBadRequest(w, "invalid request body")
		return
	}

	if len(req.Commands) == 0 || len(req.Commands) > maxBatchCommands {
		writeBadRequest(w, fmt.Sprintf("batch must contain between 1 and %d commands", maxBatchCommands))
		return
	}

	results := h.batch.ProcessBatch(r.Context(), req.Commands)

	resp := BatchResponse{Results: make([]BatchCommandResult, len(results))}
	for i, res := range results {
		resp.Results[i] = BatchCommandResult{
			UserID:    res.Command.UserID,
			Amount:    res.Command.Amount,
			Type:      res.Command.Type,
			UserPoint: res.UserPoint,
			Error:     toErrorResponse(res.Err),
		}
		if res.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type StatsResponse struct {
	Submitted      int64  `json:"submitted"`
	Completed      int64  `json:"completed"`
	Failed         int64  `json:"failed"`
	Rejected       int64  `json:"rejected"`
	AvgProcessTime string `json:"avg_process_time"`
	QueueLength    int    `json:"queue_length"`
	QueueCapacity  int    `json:"queue_capacity"`
}

func (h *PointHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.batch.Stats()

	writeJSON(w, http.StatusOK, StatsResponse{
		Submitted:      stats.Submitted,
		Completed:      stats.Completed,
		Failed:         stats.Failed,
		Rejected:       stats.Rejected,
		AvgProcessTime: stats.AvgProcessTime.String(),
		QueueLength:    stats.QueueLength,
		QueueCapacity:  stats.QueueCapacity,
	})
}

type pointMutation func(ctx context.Context, userID int64, amount int64) (*domain.UserPoint, error)

func (h *PointHandler) mutate(w http.ResponseWriter, r *http.Request, apply pointMutation) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	amount, err := decodeAmount(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Could not decode amount", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		writeBadRequest(w, err.Error())
		return
	}

	point, err := apply(r.Context(), userID, amount)
	if err != nil {
		h.fail(w, r, "Point transaction failed", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, point)
}

func (h *PointHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || userID <= 0 {
		writeBadRequest(w, "user id must be a positive integer")
		return 0, false
	}
	return userID, true
}

func (h *PointHandler) fail(w http.ResponseWriter, r *http.Request, msg string, userID int64, err error) {
	fields := map[string]interface{}{
		"user_id": userID,
		"error":   err.Error(),
	}

	if _, status := classify(err); status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, fields)
	} else {
		h.logger.DebugContext(r.Context(), msg, fields)
	}

	writeError(w, err)
}

type amountRequest struct {
	Amount *int64 `json:"amount"`
}

// decodeAmount accepts either a bare JSON integer or {"amount": n}.
func decodeAmount(body io.Reader) (int64, error) {
	raw, err := io.ReadAll(io.LimitReader(body, 1<<10))
	if err != nil {
		return 0, fmt.Errorf("could not read request body: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, errors.New("amount is required")
	}

	if raw[0] == '{' {
		var req amountRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return 0, errors.New("amount must be an integer")
		}
		if req.Amount == nil {
			return 0, errors.New("amount is required")
		}
		return *req.Amount, nil
	}

	var amount int64
	if err := json.Unmarshal(raw, &amount); err != nil {
		return 0, errors.New("amount must be an integer")
	}
	return amount, nil
}
