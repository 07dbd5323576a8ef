package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"leadpilot/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Distribution policy values accepted on sequence creation
	_ = v.RegisterValidation("policy", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", models.PolicyRoundRobin, models.PolicyRandom, models.PolicyWeighted:
			return true
		}
		return false
	})
	return v
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Format validation errors
	var errors []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errors = append(errors, field+" is required")
		case "min":
			errors = append(errors, field+" must be at least "+param)
		case "max":
			errors = append(errors, field+" must be at most "+param)
		case "email":
			errors = append(errors, field+" must be a valid email")
		case "policy":
			errors = append(errors, field+" must be one of round_robin, random, weighted")
		default:
			errors = append(errors, field+" is invalid")
		}
	}

	return fmt.Errorf("%s", strings.Join(errors, ", "))
}
