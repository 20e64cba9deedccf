package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jvaesteves/user-service/internal/user"
	"github.com/jvaesteves/user-service/internal/validation"
)

const (
	APIKeyHeader = "X-API-Key"

	maxBodyBytes = 1 << 20
)

type PhoneRequest struct {
	DDD    string `json:"ddd" validate:"required,len=2,number"`
	Number string `json:"number" validate:"required,max=9,number"`
}

type RegisterRequest struct {
	Name     string         `json:"name" validate:"required,max=150"`
	Email    string         `json:"email" validate:"required,email,max=254"`
	Password string         `json:"password" validate:"required,max=72"`
	Phones   []PhoneRequest `json:"phones" validate:"required,dive"`
}

// LoginRequest carries no value rules: an empty e-mail or password is just
// a failed login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserHandler struct {
	service  user.Service
	validate *validator.Validate
}

func NewUserHandler(service user.Service) *UserHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &UserHandler{
		service:  service,
		validate: validate,
	}
}

// RegisterRoutes mounts the endpoints on router. authMiddlewares wrap only
// the credential-accepting routes (register and login).
func (h *UserHandler) RegisterRoutes(router chi.Router, authMiddlewares ...func(http.Handler) http.Handler) {
	guarded := router.With(authMiddlewares...)
	guarded.Post("/register", h.handleRegister)
	guarded.Post("/login", h.handleLogin)
	router.Get("/profile/{id}", h.handleProfile)

	router.Route("/users", func(r chi.Router) {
		guarded := r.With(authMiddlewares...)
		guarded.Post("/register/", h.handleRegister)
		guarded.Post("/login/", h.handleLogin)
		r.Get("/profile/{id}", h.handleProfile)
	})
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, fields, ok := h.readObject(w, r)
	if !ok {
		return
	}

	if err := validation.CheckKeys(validation.RegisterKeys, fields); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var phones []map[string]json.RawMessage
	if err := json.Unmarshal(fields["phones"], &phones); err != nil {
		respondWithError(w, http.StatusBadRequest, "Field 'phones' must be a list of objects")
		return
	}
	for _, phone := range phones {
		if err := validation.CheckKeys(validation.PhoneKeys, phone); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var requestPayload RegisterRequest
	if !h.decodeAndValidate(w, body, &requestPayload) {
		return
	}

	input := user.RegisterInput{
		Name:     requestPayload.Name,
		Email:    requestPayload.Email,
		Password: requestPayload.Password,
	}
	for _, phone := range requestPayload.Phones {
		input.Phones = append(input.Phones, user.PhoneInput{DDD: phone.DDD, Number: phone.Number})
	}

	createdUser, err := h.service.Register(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	log.Info().Stringer("user_id", createdUser.ID).Msg("User registered")
	respondWithJSON(w, http.StatusCreated, createdUser.Profile())
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, fields, ok := h.readObject(w, r)
	if !ok {
		return
	}

	if err := validation.CheckKeys(validation.LoginKeys, fields); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var requestPayload LoginRequest
	if !h.decodeAndValidate(w, body, &requestPayload) {
		return
	}

	loggedIn, err := h.service.Login(r.Context(), requestPayload.Email, requestPayload.Password)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, loggedIn.Profile())
}

func (h *UserHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(APIKeyHeader)
	if token == "" {
		respondWithError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	idParam := chi.URLParam(r, "id")
	userID, err := uuid.FromString(idParam)
	if err != nil {
		log.Debug().Err(err).Str("user_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	foundUser, err := h.service.Profile(r.Context(), userID, token)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, foundUser.Profile())
}

// readObject reads the body and splits the top-level JSON object into its
// raw fields. It writes a 400 response and returns false on failure.
func (h *UserHandler) readObject(w http.ResponseWriter, r *http.Request) ([]byte, map[string]json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read request body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return nil, nil, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		log.Debug().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return nil, nil, false
	}

	return body, fields, true
}

func (h *UserHandler) decodeAndValidate(w http.ResponseWriter, body []byte, dst any) bool {
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Field '%s' has an invalid type", typeErr.Field))
		} else {
			respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		}
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithError(w, http.StatusBadRequest, formatValidationErrors(validationErrors))
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, msgInternal)
		}
		return false
	}

	return true
}
