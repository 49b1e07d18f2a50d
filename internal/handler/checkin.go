package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/service"
	"github.com/commitmentparties/engine/internal/validation"
)

type CheckinHandler struct {
	checkins *service.CheckinService
}

func NewCheckinHandler(checkins *service.CheckinService) *CheckinHandler {
	return &CheckinHandler{checkins: checkins}
}

// Submit accepts a multipart form with a "wallet" field and a "screenshot"
// file and evaluates it for the current challenge day.
func (h *CheckinHandler) Submit(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFromPath(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(validation.MaxScreenshotSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	wallet := r.FormValue("wallet")
	file, header, err := r.FormFile("screenshot")
	if err != nil {
		respondError(w, http.StatusBadRequest, "screenshot file is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := validation.Screenshot(mimeType, int(header.Size)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := io.ReadAll(io.LimitReader(file, validation.MaxScreenshotSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read screenshot")
		return
	}

	checkin, err := h.checkins.Submit(r.Context(), poolID, wallet, image, mimeType, time.Now())
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, map[string]any{
			"checkin_id": checkin.ID,
			"day":        checkin.Day,
			"success":    checkin.Success,
		})
	case errors.Is(err, service.ErrCheckinRejected):
		respondJSON(w, http.StatusOK, map[string]any{
			"checkin_id": checkin.ID,
			"day":        checkin.Day,
			"success":    false,
			"reason":     err.Error(),
		})
	case errors.Is(err, repository.ErrPoolNotFound),
		errors.Is(err, repository.ErrParticipantNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPoolNotOpen),
		errors.Is(err, service.ErrWrongGoalKind),
		errors.Is(err, service.ErrNotParticipant):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrScreenshotRead):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "check-in failed")
	}
}
