package annotation

import (
	"errors"
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/lewtec/rotulador-video/internal/domain"
)

type StatusLevel string

const (
	StatusInfo  StatusLevel = "info"
	StatusError StatusLevel = "error"
)

// Status is the operator-facing message carried by statusChanged
type Status struct {
	Message          string      `json:"message"`
	Level            StatusLevel `json:"level"`
	Processing       bool        `json:"processing"`
	CurrentFrame     int         `json:"currentFrame"`
	NeedsPropagation bool        `json:"needsPropagation"`
}

// ErrorKind names the category of an error for logs and API responses
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrVideoLoad):
		return "video_load"
	case errors.Is(err, domain.ErrInitialization):
		return "initialization"
	case errors.Is(err, domain.ErrPredictorCall):
		return "predictor_call"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrExport):
		return "export"
	default:
		return "internal"
	}
}

// HTTPStatus maps an orchestrator error onto a response code
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrVideoLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInitialization), errors.Is(err, domain.ErrPredictorCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(localizer *i18n.Localizer, err error) string {
	data := map[string]any{"Error": err.Error()}
	switch {
	case errors.Is(err, domain.ErrNoObjectSelected):
		return Localize(localizer, "status_select_object", nil)
	case errors.Is(err, domain.ErrNothingToUndo):
		return Localize(localizer, "status_nothing_to_undo", nil)
	case errors.Is(err, domain.ErrBusy):
		return Localize(localizer, "status_busy", nil)
	case errors.Is(err, domain.ErrNoVideo):
		return Localize(localizer, "status_no_video", nil)
	case errors.Is(err, domain.ErrVideoLoad):
		return Localize(localizer, "status_error_video", data)
	case errors.Is(err, domain.ErrInitialization):
		return Localize(localizer, "status_error_init", data)
	case errors.Is(err, domain.ErrPredictorCall):
		return Localize(localizer, "status_error_predictor", data)
	case errors.Is(err, domain.ErrValidation):
		return Localize(localizer, "status_error_validation", data)
	case errors.Is(err, domain.ErrExport):
		return Localize(localizer, "status_error_export", data)
	default:
		return Localize(localizer, "status_error", data)
	}
}
