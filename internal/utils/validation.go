package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("phone", validatePhone)
	validate.RegisterValidation("otp", validateOTP)
	validate.RegisterValidation("gps_status", validateGPSStatus)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationDetails flattens validator errors into field -> rule pairs for
// ValidationErrorResponse. Other errors come back under "request".
func ValidationDetails(err error) map[string]string {
	details := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		details["request"] = err.Error()
		return details
	}

	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			details[field] = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		} else {
			details[field] = fe.Tag()
		}
	}
	return details
}

func validatePhone(fl validator.FieldLevel) bool {
	return IsValidPhone(fl.Field().String())
}

func validateOTP(fl validator.FieldLevel) bool {
	otp := fl.Field().String()
	if len(otp) != OTPLength {
		return false
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateGPSStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "ON", "OFF":
		return true
	}
	return false
}
