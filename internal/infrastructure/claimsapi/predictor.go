package claimsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/core/ports"
	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
)

const DefaultConfidence = 0.85

type PredictorOptions struct {
	Path string
	// DefaultConfidence replaces a missing or malformed confidence score.
	DefaultConfidence float64
	Resilience        resilience.Config
	Executor          *resilience.Executor
}

type Predictor struct {
	client            *Client
	path              string
	defaultConfidence float64
	executor          *resilience.Executor
}

func NewPredictor(client *Client, opts PredictorOptions) *Predictor {
	confidence := opts.DefaultConfidence
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultConfidence
	}
	return &Predictor{
		client:            client,
		path:              normalizePath(opts.Path, "/claims/predict"),
		defaultConfidence: confidence,
		executor:          newExecutorIfNil(opts.Executor, opts.Resilience),
	}
}

type predictRequest struct {
	InputData domain.PredictionInput `json:"input_data"`
}

type predictionBody struct {
	SettlementAmount json.RawMessage `json:"settlement_amount"`
	ConfidenceScore  json.RawMessage `json:"confidence_score"`
}

type predictionEnvelope struct {
	Data *struct {
		Prediction *predictionBody `json:"prediction"`
	} `json:"data"`
	Prediction *predictionBody `json:"prediction"`
}

func (p *Predictor) Predict(ctx context.Context, input domain.PredictionInput, onRetry ports.RetryObserver) (domain.PredictionResult, error) {
	var result domain.PredictionResult
	err := p.executor.Run(ctx, resilience.Call{
		Operation: "claims.predict",
		Fn: func(attemptCtx context.Context) error {
			raw, err := p.client.post(attemptCtx, p.path, predictRequest{InputData: input}, "predict")
			if err != nil {
				return err
			}
			parsed, err := p.decode(raw)
			if err != nil {
				return err
			}
			result = parsed
			return nil
		},
		Classifier: classifyPredictionError,
		OnRetry:    onRetry,
	})
	if err != nil {
		return domain.PredictionResult{}, toPredictionError(err)
	}
	return result, nil
}

func (p *Predictor) decode(raw []byte) (domain.PredictionResult, error) {
	var env predictionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: decode body: %v", ErrInvalidPrediction, err)
	}

	body := env.Prediction
	if env.Data != nil && env.Data.Prediction != nil {
		body = env.Data.Prediction
	}
	if body == nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: prediction object missing", ErrInvalidPrediction)
	}

	amount, ok := rawNumber(body.SettlementAmount)
	if !ok || amount <= 0 {
		return domain.PredictionResult{}, fmt.Errorf("%w: settlement_amount %s", ErrInvalidPrediction, strings.TrimSpace(string(body.SettlementAmount)))
	}

	confidence, ok := rawNumber(body.ConfidenceScore)
	if !ok {
		confidence = p.defaultConfidence
	}
	confidence = math.Min(math.Max(confidence, 0), 1)

	return domain.PredictionResult{
		SettlementAmount: amount,
		ConfidenceScore:  confidence,
		Source:           domain.PredictionSourceML,
	}, nil
}

// rawNumber accepts JSON numbers and numeric strings.
func rawNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
	} else {
		text = string(raw)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
