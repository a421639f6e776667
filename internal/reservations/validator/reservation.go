package validator

import (
	"errors"
	"fmt"
	"strings"

	"mentorly/pkg/logger"
	"mentorly/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate      *validator.Validate
	maxPeriodSecs int64
	logger        *logger.Logger
}

func NewReservationValidator(log *logger.Logger, maxPeriodSecs int64) *ReservationValidator {
	return &ReservationValidator{
		validate:      validator.New(),
		maxPeriodSecs: maxPeriodSecs,
		logger:        log,
	}
}

func (v *ReservationValidator) Validate(reservation *model.Reservation) error {
	if err := v.validate.Struct(reservation); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if reservation.DTEnd-reservation.DTStart > v.maxPeriodSecs {
		return ValidationErrors{
			ValidationError{
				Field:   "DTEnd",
				Message: fmt.Sprintf("time span exceeds maximum of %d seconds", v.maxPeriodSecs),
			},
		}
	}

	return nil
}

// ValidateStatus checks a requested status transition target. PENDING is
// never a transition target; a party only accepts or rejects.
func (v *ReservationValidator) ValidateStatus(status model.BookingStatus) error {
	switch status {
	case model.BookingAccept, model.BookingReject:
		return nil
	default:
		return ValidationErrors{
			ValidationError{
				Field:   "Status",
				Message: fmt.Sprintf("status must be one of: %s, %s", model.BookingAccept, model.BookingReject),
			},
		}
	}
}

// ValidateListState parses the coarse list-state filter.
func (v *ReservationValidator) ValidateListState(state string) (model.ReservationListState, error) {
	switch model.ReservationListState(state) {
	case model.ListStateUpcoming, model.ListStatePending, model.ListStateHistory:
		return model.ReservationListState(state), nil
	default:
		return "", ValidationErrors{
			ValidationError{
				Field:   "State",
				Message: fmt.Sprintf("state must be one of: %s, %s, %s", model.ListStateUpcoming, model.ListStatePending, model.ListStateHistory),
			},
		}
	}
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "nefield":
			message = fmt.Sprintf("%s must differ from %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
