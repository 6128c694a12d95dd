package claimsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
)

func fastRetries(attempts int) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: 0,
		RetryMultiplier:     1,
		AttemptTimeout:      time.Second,
		BreakerEnabled:      false,
	}
}

func TestPredictorParsesNestedPrediction(t *testing.T) {
	var captured map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/claims/predict" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"data":{"prediction":{"settlement_amount":"12500.5","confidence_score":0.91}}}`))
	}))
	defer server.Close()

	predictor := NewPredictor(New(server.URL, "secret"), PredictorOptions{Resilience: fastRetries(1)})
	got, err := predictor.Predict(context.Background(), domain.PredictionInput{"AccidentType": "Rear end", "DriverAge": 30.0}, nil)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	want := domain.PredictionResult{SettlementAmount: 12500.5, ConfidenceScore: 0.91, Source: domain.PredictionSourceML}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("prediction mismatch (-want +got):\n%s", diff)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
	input, ok := captured["input_data"].(map[string]any)
	if !ok || input["AccidentType"] != "Rear end" {
		t.Fatalf("expected input_data envelope, got %v", captured)
	}
}

func TestPredictorDefaultsMissingConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prediction":{"settlement_amount":1000}}`))
	}))
	defer server.Close()

	predictor := NewPredictor(New(server.URL, ""), PredictorOptions{Resilience: fastRetries(1)})
	got, err := predictor.Predict(context.Background(), domain.PredictionInput{}, nil)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got.ConfidenceScore != DefaultConfidence {
		t.Fatalf("expected default confidence %v, got %v", DefaultConfidence, got.ConfidenceScore)
	}
}

func TestPredictorReportsEachRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"prediction":{"settlement_amount":500,"confidence_score":0.7}}`))
	}))
	defer server.Close()

	var retries []int
	predictor := NewPredictor(New(server.URL, ""), PredictorOptions{Resilience: fastRetries(3)})
	got, err := predictor.Predict(context.Background(), domain.PredictionInput{}, func(attempt int, err error) {
		retries = append(retries, attempt)
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got.SettlementAmount != 500 {
		t.Fatalf("unexpected amount %v", got.SettlementAmount)
	}
	if diff := cmp.Diff([]int{1, 2}, retries); diff != "" {
		t.Fatalf("retry notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestPredictorFailureKinds(t *testing.T) {
	slow := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	tests := []struct {
		name    string
		handler http.HandlerFunc
		cfg     resilience.Config
		want    domain.PredictionErrorKind
	}{
		{
			name: "service unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusServiceUnavailable)
			},
			want: domain.PredictionServiceUnavailable,
		},
		{
			name: "zero settlement",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"prediction":{"settlement_amount":0}}`))
			},
			want: domain.PredictionInvalidResponse,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>gateway</html>`))
			},
			want: domain.PredictionInvalidResponse,
		},
		{
			name:    "attempt timeout",
			handler: slow,
			cfg: resilience.Config{
				RetryMaxAttempts: 3,
				RetryMultiplier:  1,
				AttemptTimeout:   20 * time.Millisecond,
			},
			want: domain.PredictionTimeout,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusBadRequest)
			},
			want: domain.PredictionUnknown,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tc.handler(w, r)
			}))
			defer server.Close()

			cfg := tc.cfg
			if cfg.RetryMaxAttempts == 0 {
				cfg = fastRetries(3)
			}
			var retries int
			predictor := NewPredictor(New(server.URL, ""), PredictorOptions{Resilience: cfg})
			_, err := predictor.Predict(context.Background(), domain.PredictionInput{}, func(int, error) { retries++ })

			predErr, ok := domain.AsPredictionError(err)
			if !ok {
				t.Fatalf("expected prediction error, got %v", err)
			}
			if predErr.Kind != tc.want {
				t.Fatalf("expected kind %q, got %q (%v)", tc.want, predErr.Kind, err)
			}
			if hits.Load() != 3 || retries != 2 {
				t.Fatalf("expected 3 attempts and 2 retry notices, got %d and %d", hits.Load(), retries)
			}
		})
	}
}

func TestPredictorUnreachableIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	predictor := NewPredictor(New(url, ""), PredictorOptions{Resilience: fastRetries(2)})
	_, err := predictor.Predict(context.Background(), domain.PredictionInput{}, nil)

	predErr, ok := domain.AsPredictionError(err)
	if !ok || predErr.Kind != domain.PredictionNetwork {
		t.Fatalf("expected network prediction error, got %v", err)
	}
}

func TestSubmitterDecodesClaimID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.SubmissionAck
	}{
		{name: "nested numeric id", body: `{"data":{"id":9007199254740993}}`, want: domain.SubmissionAck{ClaimID: "9007199254740993", Recognized: true}},
		{name: "flat string id", body: `{"id":"CLM-7"}`, want: domain.SubmissionAck{ClaimID: "CLM-7", Recognized: true}},
		{name: "unknown shape", body: `{"ok":true}`, want: domain.SubmissionAck{}},
		{name: "empty body", body: ``, want: domain.SubmissionAck{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/claims/" {
					http.NotFound(w, r)
					return
				}
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			submitter := NewSubmitter(New(server.URL, ""), SubmitterOptions{Resilience: fastRetries(1)})
			got, err := submitter.SubmitClaim(context.Background(), domain.ClaimPayload{Title: "t"})
			if err != nil {
				t.Fatalf("SubmitClaim() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ack mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubmitterRejectionMessage(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantMsg    string
		wantFields map[string]string
	}{
		{
			name:       "field errors win",
			body:       `{"detail":"Invalid claim","amount":["Must be positive."]}`,
			wantMsg:    "amount: Must be positive.",
			wantFields: map[string]string{"amount": "Must be positive."},
		},
		{
			name:       "nested errors object",
			body:       `{"message":"bad","errors":{"incident_date":"Date in the future"}}`,
			wantMsg:    "incident_date: Date in the future",
			wantFields: map[string]string{"incident_date": "Date in the future"},
		},
		{name: "detail", body: `{"detail":"Duplicate claim"}`, wantMsg: "Duplicate claim"},
		{name: "message", body: `{"message":"Policy inactive"}`, wantMsg: "Policy inactive"},
		{name: "not json", body: `oops`, wantMsg: genericRejection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			submitter := NewSubmitter(New(server.URL, ""), SubmitterOptions{Resilience: fastRetries(2)})
			_, err := submitter.SubmitClaim(context.Background(), domain.ClaimPayload{})

			subErr, ok := domain.AsSubmissionError(err)
			if !ok {
				t.Fatalf("expected submission error, got %v", err)
			}
			if subErr.Kind != domain.SubmissionBackendRejected {
				t.Fatalf("expected backend_rejected, got %q", subErr.Kind)
			}
			if subErr.UserMessage() != tc.wantMsg {
				t.Fatalf("expected message %q, got %q", tc.wantMsg, subErr.UserMessage())
			}
			if diff := cmp.Diff(tc.wantFields, subErr.Fields); diff != "" {
				t.Fatalf("fields mismatch (-want +got):\n%s", diff)
			}
			if hits.Load() != 1 {
				t.Fatalf("rejected submission must not be retried, got %d posts", hits.Load())
			}
		})
	}
}

func TestSubmitterRetriesBadGateway(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "upstream", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":12}`))
	}))
	defer server.Close()

	submitter := NewSubmitter(New(server.URL, ""), SubmitterOptions{Resilience: fastRetries(2)})
	ack, err := submitter.SubmitClaim(context.Background(), domain.ClaimPayload{})
	if err != nil {
		t.Fatalf("SubmitClaim() error = %v", err)
	}
	if ack.ClaimID != "12" || hits.Load() != 2 {
		t.Fatalf("expected id 12 after 2 posts, got %q after %d", ack.ClaimID, hits.Load())
	}
}

func TestSubmitterServerErrorIsUnknown(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"detail":"stack trace"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	submitter := NewSubmitter(New(server.URL, ""), SubmitterOptions{Resilience: fastRetries(2)})
	_, err := submitter.SubmitClaim(context.Background(), domain.ClaimPayload{})

	subErr, ok := domain.AsSubmissionError(err)
	if !ok || subErr.Kind != domain.SubmissionUnknown {
		t.Fatalf("expected unknown submission error, got %v", err)
	}
	if subErr.UserMessage() == "stack trace" {
		t.Fatalf("server error details must not reach the user")
	}
	if hits.Load() != 1 {
		t.Fatalf("500 must not be retried, got %d posts", hits.Load())
	}
}
