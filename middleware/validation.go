package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/jobtracker/common"
)

var validate = validator.New()

// BindQuery binds query parameters into dest and validates it.
func BindQuery[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid query: %v", err.Error()))
		return false
	}

	return validateStruct(c, dest)
}

func validateStruct(c *gin.Context, dest any) bool {
	if err := validate.Struct(dest); err != nil {
		c.Error(common.NewAPIError(http.StatusBadRequest, "validation failed", FormatValidationErrors(err)))
		return false
	}

	return true
}

func FormatValidationErrors(err error) map[string]any {
	errs := map[string]any{}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_"] = err.Error()
		return errs
	}

	for _, e := range verrs {
		errs[e.Field()] = "failed " + e.Tag()
	}
	return errs
}
