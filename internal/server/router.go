package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"motorisk/internal/dataset"
	"motorisk/internal/feature"
	"motorisk/internal/history"
	"motorisk/internal/metadata"
	"motorisk/internal/metrics"
	"motorisk/internal/model"
	"motorisk/internal/risk"
)

const (
	maxBodyBytes  = 1 << 20
	maxBatchItems = 1000

	msgNotScored = "could not score this listing"
)

// ApiV1Router manages routes for API version 1.
// Handles scoring listings, listing history, model information and reload,
// and serving static files.
type ApiV1Router struct {
	// handle — the loaded model and its metadata.
	handle *model.Handle
	// scorer — risk scorer shared by all requests.
	scorer *risk.Scorer
	// history — recent assessments per listing id.
	history *history.Repository
	// dataset — audit trail of scored listings.
	dataset dataset.Repository
	// metrics — scoring counters exposed on /metrics.
	metrics *metrics.Metrics
	// static — path to directory with static files. Empty disables static serving.
	static string
	// token — bearer token for administrative endpoints.
	token string
	// workers — concurrent predictions for batch requests.
	workers int
}

type assessmentRequest struct {
	ListingID    string      `json:"listing_id"`
	Features     feature.Row `json:"features"`
	ClaimedPrice *float64    `json:"claimed_price"`
}

func (r assessmentRequest) item() risk.Item {
	item := risk.Item{Row: r.Features}
	if r.ClaimedPrice != nil {
		item.ClaimedPrice = *r.ClaimedPrice
	}
	return item
}

type batchRequest struct {
	Items []assessmentRequest `json:"items"`
}

type batchResult struct {
	ListingID string       `json:"listing_id,omitempty"`
	Result    *risk.Report `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

type modelResponse struct {
	Source          string                      `json:"source"`
	LoadedAt        time.Time                   `json:"loaded_at"`
	NumericCols     []string                    `json:"numeric_cols"`
	CategoricalCols []string                    `json:"categorical_cols"`
	Residuals       metadata.ResidualStatistics `json:"residuals"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Mux returns a configured *http.ServeMux with registered handlers:
// - POST /api/v1/assessments — scores one listing
// - POST /api/v1/assessments/batch — scores many listings
// - GET /api/v1/listings/{id}/assessments — recent assessments of a listing
// - GET /api/v1/model — loaded model information
// - POST /api/v1/model/reload — reloads the model (bearer token)
// - GET /metrics — Prometheus metrics
// - GET /static/... — serves static files (if enabled)
func (ar *ApiV1Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/assessments", ar.assessmentHandler)
	mux.HandleFunc("POST /api/v1/assessments/batch", ar.batchHandler)
	mux.HandleFunc("GET /api/v1/listings/{id}/assessments", ar.historyHandler)
	mux.HandleFunc("GET /api/v1/model", ar.modelHandler)
	mux.HandleFunc("POST /api/v1/model/reload", ar.reloadHandler)
	mux.Handle("GET /metrics", ar.metrics.Handler())

	if len(ar.static) != 0 {
		fs := http.FileServer(http.Dir(ar.static))
		mux.Handle("GET /static/", http.StripPrefix("/static/", fs))
	}

	return mux
}

// assessmentHandler scores one listing.
// A listing the model cannot price is answered with 422 and "could not score this listing".
func (ar *ApiV1Router) assessmentHandler(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Warn("Unable to unmarshal assessment request body", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid request body"})
		return
	}

	snapshot := ar.handle.Current()
	item := req.item()
	report, err := ar.scorer.Evaluate(r.Context(), snapshot.Predictor, snapshot.Metadata, item.Row, item.ClaimedPrice)
	if err != nil {
		ar.writeScoreError(w, req.ListingID, err)
		return
	}

	ar.record(req.ListingID, item.Row, report)
	writeJSON(w, http.StatusOK, report)
}

// batchHandler scores every item independently. Items that cannot be scored carry
// an error message instead of a result; the response status is still 200.
func (ar *ApiV1Router) batchHandler(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Warn("Unable to unmarshal batch request body", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Items) > maxBatchItems {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "too many items"})
		return
	}

	items := make([]risk.Item, len(req.Items))
	for i := range req.Items {
		items[i] = req.Items[i].item()
	}

	snapshot := ar.handle.Current()
	outcomes := ar.scorer.ScoreBatch(r.Context(), snapshot.Predictor, snapshot.Metadata, items, ar.workers)

	resp := batchResponse{Results: make([]batchResult, len(outcomes))}
	for i, outcome := range outcomes {
		listing := req.Items[i].ListingID
		resp.Results[i].ListingID = listing
		if outcome.Err != nil {
			slog.Warn("Listing not scored", "listing", listing, "error", outcome.Err)
			ar.metrics.Failed()
			resp.Results[i].Error = msgNotScored
			continue
		}
		report := outcome.Report
		resp.Results[i].Result = &report
		ar.record(listing, items[i].Row, report)
	}

	writeJSON(w, http.StatusOK, resp)
}

// historyHandler returns the recent assessments of a listing, or 404.
func (ar *ApiV1Router) historyHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	records, found := ar.history.Get(id)
	if !found {
		slog.Warn("Listing history not found", "listing", id)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "listing not found"})
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// modelHandler describes the model in use, including the columns a form should ask for.
func (ar *ApiV1Router) modelHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := ar.handle.Current()
	writeJSON(w, http.StatusOK, modelResponse{
		Source:          snapshot.Source,
		LoadedAt:        snapshot.LoadedAt,
		NumericCols:     snapshot.Metadata.Numeric(),
		CategoricalCols: snapshot.Metadata.Categorical(),
		Residuals:       snapshot.Metadata.Residuals(),
	})
}

// reloadHandler reloads the model. Requires "Authorization: Bearer <token>".
// On failure the previous model stays in use and 500 is returned.
func (ar *ApiV1Router) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if !ar.authorized(r) {
		slog.Warn("Unauthorized model reload")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	_, err := ar.handle.Reload(r.Context())
	ar.metrics.Reloaded(err)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "model reload failed"})
		return
	}

	ar.modelHandler(w, r)
}

func (ar *ApiV1Router) authorized(r *http.Request) bool {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(ar.token)) == 1
}

func (ar *ApiV1Router) writeScoreError(w http.ResponseWriter, listing string, err error) {
	ar.metrics.Failed()
	var pe *model.PredictionError
	if errors.As(err, &pe) {
		slog.Warn("Listing not scored", "listing", listing, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msgNotScored})
		return
	}
	slog.Error("Scoring failed", "listing", listing, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgNotScored})
}

// record keeps the assessment in the listing history, the dataset and the metrics.
// Listings without an id are not kept in the history.
func (ar *ApiV1Router) record(listing string, row feature.Row, report risk.Report) {
	ar.metrics.Observe(report.Assessment)
	if listing != "" {
		ar.history.Append(listing, report.Assessment)
	}
	ar.dataset.Append(listing, row, report)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return decoder.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Unable to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// NewApiV1Router creates a new API v1 router.
// Parameters:
// - static: path to static files (can be empty)
// - token: bearer token for model reload
// - workers: concurrent predictions for batch requests
// - handle: loaded model
// - scorer: risk scorer
// - historyRepo: per-listing assessment history
// - datasetRepo: dataset of scored listings
// - metrics: scoring metrics
func NewApiV1Router(
	static string,
	token string,
	workers int,
	handle *model.Handle,
	scorer *risk.Scorer,
	historyRepo *history.Repository,
	datasetRepo dataset.Repository,
	metrics *metrics.Metrics,
) *ApiV1Router {
	return &ApiV1Router{
		handle:  handle,
		scorer:  scorer,
		history: historyRepo,
		dataset: datasetRepo,
		metrics: metrics,
		static:  static,
		token:   token,
		workers: workers,
	}
}
