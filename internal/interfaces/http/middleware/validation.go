package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CentsTag rejects decimal amounts with more places than money keeps
const CentsTag = "cents"

// SetupValidator configures gin's validator: field errors are named by
// their JSON or form tag and the cents tag is registered.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation(CentsTag, validateCents)
}

// validateCents sees decimals as their string form
func validateCents(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.Equal(d.Truncate(valueobject.CentsPlaces))
}

// FormatValidationErrors turns a binding error into a response. Anything
// other than field validation failures, malformed JSON for one, becomes a
// single BAD_REQUEST message.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Malformed request: "+err.Error(), requestID)
	}

	details := make([]dto.ValidationDetail, len(fieldErrs))
	for i, fe := range fieldErrs {
		details[i] = dto.ValidationDetail{Field: fe.Field(), Message: describe(fe)}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 response for a binding error, or 413
// when the body was cut by BodyLimit
func HandleValidationError(c *gin.Context, err error) {
	if BodyTooLarge(err) {
		abortTooLarge(c)
		return
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func describe(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	} else if fe.Kind() == reflect.Slice {
		unit = " items"
	}
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min", "gte":
		return "Must be at least " + fe.Param() + unit
	case "max", "lte":
		return "Must be at most " + fe.Param() + unit
	case "gt":
		return "Must be greater than " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "uuid":
		return "Invalid UUID format"
	case CentsTag:
		return "Amounts have at most two decimal places"
	default:
		return "Invalid value"
	}
}
