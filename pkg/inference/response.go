package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/Eventual-Inc/modelfn/pkg/artifactcache"
	"github.com/Eventual-Inc/modelfn/pkg/frame"
	"github.com/Eventual-Inc/modelfn/pkg/model"
)

// Error reasons reported in HTTPError.Reason
const (
	ReasonInvalidRequest = "invalid_request"
	ReasonInvalidInput   = "invalid_input"
	ReasonFetchFailed    = "artifact_fetch_failed"
	ReasonLoadFailed     = "model_load_failed"
	ReasonPredictFailed  = "prediction_failed"
	ReasonTimeout        = "timeout"
	ReasonCanceled       = "canceled"
)

type PredictionResponse struct {
	Predictions []interface{} `json:"predictions" swaggertype:"array,string" example:"setosa"`
}

type HTTPError struct {
	Code    int    `json:"code" example:"400"`
	Reason  string `json:"error" example:"invalid_request"`
	Message string `json:"message" example:"invalid request: missing body"`
}

// StatusClientClosedRequest is reported when the caller went away before an answer was ready
const StatusClientClosedRequest = 499

// Classify maps a handler error to its response status and reason
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ReasonTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ReasonCanceled
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, frame.ErrMalformed):
		return http.StatusBadRequest, ReasonInvalidRequest
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, frame.ErrShape):
		return http.StatusUnprocessableEntity, ReasonInvalidInput
	case errors.Is(err, artifactcache.ErrFetch):
		return http.StatusBadGateway, ReasonFetchFailed
	case errors.Is(err, model.ErrLoad):
		return http.StatusInternalServerError, ReasonLoadFailed
	default:
		return http.StatusInternalServerError, ReasonPredictFailed
	}
}

func NewHTTPError(err error) HTTPError {
	status, reason := Classify(err)
	return HTTPError{Code: status, Reason: reason, Message: err.Error()}
}

func jsonResponse(status int, body interface{}) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw, _ = json.Marshal(HTTPError{Code: status, Reason: ReasonPredictFailed, Message: err.Error()})
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}
}

func errorResponse(err error) events.APIGatewayProxyResponse {
	httpErr := NewHTTPError(err)
	return jsonResponse(httpErr.Code, httpErr)
}

func successResponse(predictions []interface{}) events.APIGatewayProxyResponse {
	if predictions == nil {
		predictions = []interface{}{}
	}
	return jsonResponse(http.StatusOK, PredictionResponse{Predictions: predictions})
}
