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

type ScheduleValidator struct {
	validate      *validator.Validate
	maxPeriodSecs int64
	logger        *logger.Logger
}

func NewScheduleValidator(log *logger.Logger, maxPeriodSecs int64) *ScheduleValidator {
	return &ScheduleValidator{
		validate:      validator.New(),
		maxPeriodSecs: maxPeriodSecs,
		logger:        log,
	}
}

func (v *ScheduleValidator) Validate(slot *model.TimeSlot) error {
	if err := v.validate.Struct(slot); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if slot.DTEnd-slot.DTStart > v.maxPeriodSecs {
		return ValidationErrors{
			ValidationError{
				Field:   "DTEnd",
				Message: fmt.Sprintf("time span exceeds maximum of %d seconds", v.maxPeriodSecs),
			},
		}
	}

	return nil
}

func (v *ScheduleValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "timezone":
			message = fmt.Sprintf("%s must be a valid IANA timezone name", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
