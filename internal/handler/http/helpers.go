package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/jvaesteves/user-service/internal/user"
)

const (
	msgInvalidPayload     = "Invalid request payload"
	msgEmailExists        = "E-mail já existente"
	msgInvalidCredentials = "Usuário e/ou senha inválidos"
	msgUnauthorized       = "Não autorizado"
	msgInvalidSession     = "Sessão inválida"
	msgPhoneNotSaved      = "Não foi possível salvar os telefones"
	msgPasswordTooLong    = "Field 'password' must be at most 72 bytes long"
	msgInternal           = "Erro interno"
)

// respondWithError writes {"error": message} with the given status.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON writes payload as a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + msgInternal + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// mapErrorToStatusCode is only meaningful for errors returned by user.Service.
// ErrNotFound reaches handlers only from a login with an unknown e-mail.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, user.ErrEmailExists),
		errors.Is(err, user.ErrPhoneNotSaved),
		errors.Is(err, user.ErrPasswordTooLong),
		errors.Is(err, user.ErrNotFound):
		return http.StatusBadRequest
	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, user.ErrUnauthorized),
		errors.Is(err, user.ErrInvalidSession):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func mapErrorToMessage(err error) string {
	switch {
	case errors.Is(err, user.ErrEmailExists):
		return msgEmailExists
	case errors.Is(err, user.ErrPhoneNotSaved):
		return msgPhoneNotSaved
	case errors.Is(err, user.ErrPasswordTooLong):
		return msgPasswordTooLong
	case errors.Is(err, user.ErrNotFound), errors.Is(err, user.ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, user.ErrUnauthorized):
		return msgUnauthorized
	case errors.Is(err, user.ErrInvalidSession):
		return msgInvalidSession
	default:
		return msgInternal
	}
}

func respondWithServiceError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Unexpected service error")
	} else {
		log.Debug().Err(err).Int("status", code).Msg("Request rejected")
	}
	respondWithError(w, code, mapErrorToMessage(err))
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}

		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("Field '%s' is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("Field '%s' must be a valid email address", field))
		case "len":
			messages = append(messages, fmt.Sprintf("Field '%s' must be exactly %s characters long", field, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("Field '%s' must be at most %s characters long", field, fe.Param()))
		case "number":
			messages = append(messages, fmt.Sprintf("Field '%s' must contain only digits", field))
		default:
			messages = append(messages, fmt.Sprintf("Field '%s' is invalid", field))
		}
	}
	return strings.Join(messages, "; ")
}
