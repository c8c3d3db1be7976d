package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/finledger/backend/internal/models"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Kind    string            `json:"kind,omitempty"`    // Stable machine-readable error kind
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendDomainError maps a domain error to its HTTP status and writes the
// stable kind plus message. Non-domain errors become an opaque 500: internal
// chains never cross the boundary.
func SendDomainError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var de *models.DomainError
	if !errors.As(err, &de) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "internal error"})
		return
	}

	w.WriteHeader(domainErrorStatus(de.Kind))
	json.NewEncoder(w).Encode(ErrorResponse{Error: de.Message, Kind: de.Kind})
}

func domainErrorStatus(kind string) int {
	switch kind {
	case models.KindAccountNotFound, models.KindTransactionNotFound:
		return http.StatusNotFound
	case models.KindStaleStatusTransition:
		return http.StatusConflict
	case models.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
