package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"motorisk/internal/feature"
)

// RemoteModel is a Predictor backed by an external inference service.
// Request format: POST <url>/predict with JSON {"rows": [...]}.
// The service is expected to answer with {"predictions": [...]}, one price per row.
type RemoteModel struct {
	url    string       // base URL of the inference service
	client *http.Client // HTTP client configured with timeout
}

type predictRequest struct {
	Rows []feature.Row `json:"rows"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Predict sends rows to the inference service and returns its prices.
// Network errors, a status other than 200, malformed JSON or a wrong number of
// predictions are all reported as a PredictionError.
func (rm *RemoteModel) Predict(ctx context.Context, rows []feature.Row) ([]float64, error) {
	requestBody, err := json.Marshal(predictRequest{Rows: rows})
	if err != nil {
		return nil, NewPredictionError("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rm.url+"/predict", bytes.NewReader(requestBody))
	if err != nil {
		return nil, NewPredictionError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rm.client.Do(req)
	if err != nil {
		return nil, NewPredictionError("model service unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewPredictionError("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewPredictionError(fmt.Sprintf("model response error code=%d status=%s", resp.StatusCode, resp.Status), nil)
	}

	var result predictResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, NewPredictionError("decode response", err)
	}

	if len(result.Predictions) != len(rows) {
		return nil, NewPredictionError(fmt.Sprintf("expected %d predictions, got %d", len(rows), len(result.Predictions)), nil)
	}

	return result.Predictions, nil
}

// NewRemoteModel creates a RemoteModel.
// Parameters:
//   - url: base address of the inference service (e.g., "http://ml-service:8080")
//   - timeout: timeout for a single prediction request
func NewRemoteModel(url string, timeout time.Duration) *RemoteModel {
	return &RemoteModel{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}
