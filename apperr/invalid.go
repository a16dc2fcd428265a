package apperr

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Invalid turns a struct validation failure into a Validation error naming
// every failing field.
func Invalid(what string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Validation("%s invalid: %v", what, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return Validation("%s invalid: %s", what, strings.Join(parts, "; "))
}
