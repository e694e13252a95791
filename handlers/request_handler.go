package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"matchConnectAPI/internal/apperror"
	"matchConnectAPI/internal/types/request"
	"matchConnectAPI/middleware"
	"matchConnectAPI/services"
)

const maxBodyBytes = 64 << 10

type RequestHandler struct {
	requestService *services.RequestService
	validate       *validator.Validate
}

func NewRequestHandler(requestService *services.RequestService) *RequestHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &RequestHandler{
		requestService: requestService,
		validate:       validate,
	}
}

// SendRequest handles POST /api/v1/requests/send
func (h *RequestHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithAppError(w, apperror.ErrUnauthorized)
		return
	}

	var req request.SendRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.requestService.Send(ctx, userID, req.ReceiverID, req.Message)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, request.SendResponse{
		Message:           "Request sent successfully",
		RemainingRequests: result.RemainingRequests,
		Request:           result.Request,
	})
}

// GetMyRequests handles GET /api/v1/requests/my-requests
func (h *RequestHandler) GetMyRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithAppError(w, apperror.ErrUnauthorized)
		return
	}

	mine, err := h.requestService.MyRequests(ctx, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, mine)
}

// GetQuota handles GET /api/v1/requests/quota
func (h *RequestHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithAppError(w, apperror.ErrUnauthorized)
		return
	}

	quota, err := h.requestService.Quota(ctx, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, quota)
}

// GetRequest handles GET /api/v1/requests/{requestId}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithAppError(w, apperror.ErrUnauthorized)
		return
	}

	requestID, ok := requestIDFromPath(w, r)
	if !ok {
		return
	}

	req, err := h.requestService.Get(ctx, requestID, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, req)
}

// RespondToRequest handles PUT /api/v1/requests/respond/{requestId}
func (h *RequestHandler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithAppError(w, apperror.ErrUnauthorized)
		return
	}

	requestID, ok := requestIDFromPath(w, r)
	if !ok {
		return
	}

	var req request.RespondRequest
	if !h.decode(w, r, &req) {
		return
	}

	action, err := services.ParseAction(string(req.Action))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	updated, err := h.requestService.Respond(ctx, requestID, userID, action)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

// CancelRequest handles DELETE /api/v1/requests/{requestId}
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithAppError(w, apperror.ErrUnauthorized)
		return
	}

	requestID, ok := requestIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.requestService.Cancel(ctx, requestID, userID); err != nil {
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requestIDFromPath parses {requestId}. A malformed id cannot name any
// request, so it is reported as not found.
func requestIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["requestId"])
	if err != nil {
		respondWithAppError(w, apperror.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *RequestHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, apperror.CodeValidation, "Invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		respondWithAppError(w, apperror.Validation(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ErrValidation.Message
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
