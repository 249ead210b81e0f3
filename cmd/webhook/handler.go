package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"

	"github.com/peteski22/erpbridge/internal/registry"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

// storeIDParam names the path or query parameter carrying the store id.
const storeIDParam = "storeId"

// webhookHandler applies ERP webhook payloads.
type webhookHandler interface {
	HandleERPWebhook(ctx context.Context, storeID string, payload erpsync.WebhookPayload) (*erpsync.WebhookResult, error)
}

// errorBody is the JSON body of a failed request.
type errorBody struct {
	Error string `json:"error"`
}

// newHandler returns the API Gateway proxy handler for ERP webhooks.
func newHandler(
	webhooks webhookHandler,
	logger *slog.Logger,
) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		storeID := req.PathParameters[storeIDParam]
		if storeID == "" {
			storeID = req.QueryStringParameters[storeIDParam]
		}
		if storeID == "" {
			return respondError(http.StatusBadRequest, "store id is required"), nil
		}

		var payload erpsync.WebhookPayload
		if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
			return respondError(http.StatusBadRequest, "invalid JSON body"), nil
		}

		res, err := webhooks.HandleERPWebhook(ctx, storeID, payload)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				logger.ErrorContext(ctx, "webhook failed",
					"store_id", storeID,
					"doctype", payload.Doctype,
					"name", payload.Name,
					"error", err)
			} else {
				logger.WarnContext(ctx, "webhook rejected",
					"store_id", storeID,
					"doctype", payload.Doctype,
					"name", payload.Name,
					"status", status,
					"error", err)
			}
			return respondError(status, err.Error()), nil
		}

		return respond(http.StatusOK, res), nil
	}
}

// statusFor maps a webhook error to its HTTP status.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, erpsync.ErrUnsupportedDoctype),
		errors.As(err, &validationErrs),
		errors.Is(err, registry.ErrStoreMismatch):
		return http.StatusBadRequest
	case errors.Is(err, erpsync.ErrLocalRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, erpsync.ErrConflict),
		errors.Is(err, erpsync.ErrAmbiguousMatch),
		errors.Is(err, registry.ErrDeliveryInFlight):
		return http.StatusConflict
	case errors.Is(err, erpsync.ErrMissingExternalID),
		errors.Is(err, erpsync.ErrMissingERPConfig):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respond(status int, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"encoding response"}`)
	}
	return events.APIGatewayProxyResponse{
		Body:       string(b),
		Headers:    map[string]string{"Content-Type": "application/json"},
		StatusCode: status,
	}
}

func respondError(status int, message string) events.APIGatewayProxyResponse {
	return respond(status, errorBody{Error: message})
}
