// Package response формирует JSON ответы API и переводит доменные ошибки в HTTP статусы
package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/go-chi/render"
)

type Response struct {
	Error *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrCode string

const (
	CodeBadRequest          ErrCode = "BAD_REQUEST"
	CodeInvalidLocalTime    ErrCode = "INVALID_LOCAL_TIME"
	CodeInvalidTimezone     ErrCode = "INVALID_TIMEZONE"
	CodeInvalidDuration     ErrCode = "INVALID_DURATION"
	CodeInvalidSlot         ErrCode = "INVALID_SLOT"
	CodeOverlappingOverride ErrCode = "OVERLAPPING_OVERRIDE"
	CodeOverlappingWeekly   ErrCode = "OVERLAPPING_WEEKLY_SLOT"
	CodeRangeTooWide        ErrCode = "RANGE_TOO_WIDE"
	CodeScheduleNotFound    ErrCode = "SCHEDULE_NOT_FOUND"
	CodeBookingNotFound     ErrCode = "BOOKING_NOT_FOUND"
	CodeScheduleExists      ErrCode = "SCHEDULE_EXISTS"
	CodeSlotUnavailable     ErrCode = "SLOT_UNAVAILABLE"
	CodeInvalidTransition   ErrCode = "INVALID_TRANSITION"
	CodeRequestCancelled    ErrCode = "REQUEST_CANCELLED"
	CodeInternal            ErrCode = "INTERNAL_ERROR"
)

// StatusClientClosedRequest нестандартный статус nginx для запроса, отменённого клиентом
const StatusClientClosedRequest = 499

type mapping struct {
	err    error
	status int
	code   ErrCode
}

var mappings = []mapping{
	{model.ErrInvalidLocalTime, http.StatusBadRequest, CodeInvalidLocalTime},
	{model.ErrInvalidTimezone, http.StatusBadRequest, CodeInvalidTimezone},
	{model.ErrInvalidDuration, http.StatusBadRequest, CodeInvalidDuration},
	{model.ErrInvalidSlot, http.StatusBadRequest, CodeInvalidSlot},
	{model.ErrInvalidRequest, http.StatusBadRequest, CodeBadRequest},
	{model.ErrRangeTooWide, http.StatusBadRequest, CodeRangeTooWide},
	{model.ErrOverlappingOverride, http.StatusUnprocessableEntity, CodeOverlappingOverride},
	{model.ErrOverlappingWeeklySlot, http.StatusUnprocessableEntity, CodeOverlappingWeekly},
	{model.ErrScheduleNotFound, http.StatusNotFound, CodeScheduleNotFound},
	{model.ErrBookingNotFound, http.StatusNotFound, CodeBookingNotFound},
	{model.ErrScheduleExists, http.StatusConflict, CodeScheduleExists},
	{model.ErrSlotUnavailable, http.StatusConflict, CodeSlotUnavailable},
	{model.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition},
	{context.Canceled, StatusClientClosedRequest, CodeRequestCancelled},
}

func Error(code ErrCode, msg string) Response {
	return Response{Error: &ErrorBody{Code: string(code), Message: msg}}
}

// FromError статус и тело ответа для ошибки сервиса.
// Для неизвестных ошибок текст не раскрывается.
func FromError(err error) (int, Response) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, Error(m.code, err.Error())
		}
	}
	return http.StatusInternalServerError, Error(CodeInternal, "internal error")
}

// WriteError пишет ошибку сервиса в ответ
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, body)
}

// BadRequest ответ на нечитаемый запрос
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(CodeBadRequest, msg))
}

// JSON успешный ответ со статусом status
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
