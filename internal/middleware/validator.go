package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"societyledger/internal/apperror"
	"societyledger/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator registers the domain enum tags on gin's validator and reports
// field names by their json tag
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"billstatus": func(fl validator.FieldLevel) bool {
			return model.BillStatus(fl.Field().String()).IsValid()
		},
		"advancestatus": func(fl validator.FieldLevel) bool {
			return model.AdvancePaymentStatus(fl.Field().String()).IsValid()
		},
		"userrole": func(fl validator.FieldLevel) bool {
			return model.UserRole(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// BindingError converts a ShouldBind* failure into a validation error with per-field details
func BindingError(err error) *apperror.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]apperror.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, apperror.FieldError{Field: fieldPath(fe), Message: describe(fe)})
		}
		return apperror.Validation("invalid request", details...)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperror.Validation("invalid request",
			apperror.FieldError{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()})
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return apperror.Validation("malformed JSON body")
	}
	return apperror.Validation("invalid request: " + err.Error())
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "billstatus":
		return "must be one of Pending, Under Review, Clarification Required, Approved, Rejected"
	case "advancestatus":
		return "must be one of Pending, Approved, Rejected, Partially Approved"
	case "userrole":
		return "must be one of Admin, Agent, Manager, Treasurer, Secretary, President"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
