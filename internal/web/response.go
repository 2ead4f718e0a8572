package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal server error: failed to encode response", http.StatusInternalServerError)
	}
}

// JSONSuccess writes resp with status.
func JSONSuccess(w http.ResponseWriter, status int, resp APIResponse) {
	writeJSON(w, status, resp)
}

// JSONError writes an error message with status.
func JSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Message: message})
}

// JSONValidationError writes per-field validation messages.
func JSONValidationError(w http.ResponseWriter, errors map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
		Message: "The given data was invalid.",
		Errors:  errors,
	})
}

var validate = validator.New()

// ValidateStruct returns a message per failing field, keyed by the
// lower-cased field name, or nil.
func ValidateStruct(payload any) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range validationErrors {
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				errors[field] = fmt.Sprintf("The %s field is required.", field)
			case "gte":
				errors[field] = fmt.Sprintf("The %s must be at least %s.", field, fe.Param())
			case "lte":
				errors[field] = fmt.Sprintf("The %s must be at most %s.", field, fe.Param())
			default:
				errors[field] = fmt.Sprintf("The %s field is invalid.", field)
			}
		}
	}
	return errors
}
