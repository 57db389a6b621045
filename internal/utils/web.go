package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteErrorAndStatusCode maps err to a status by kind. Untyped errors are
// logged and answered with a generic 500 so internals never leak.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	var e *internal_errors.Error
	if errors.As(err, &e) {
		WriteJSON(w, e.StatusCode(), ErrorBody{Code: e.Code, Message: e.Message})
		return
	}
	logger.Log.Error("internal error", "error", err)
	WriteJSON(w, http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "Internal server error"})
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

func DecodeValidate(r io.ReadCloser, body any) error {
	if err := Decode(r, body); err != nil {
		return err
	}
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("request validation failed", "error", err)
		return internal_errors.Validation(validationMessage(err))
	}
	return nil
}

func Decode(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		logger.Log.Debug("invalid json body", "error", err)
		return internal_errors.Validation("Body is invalid json")
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Required fields missing"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
	}
	return "Invalid fields: " + strings.Join(fields, ", ")
}
