package validators

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
)

// Common rule sets for query parameters.
const (
	// ObjectKey is a storage key or upload filename.
	ObjectKey = "required,max=1024,excludesall=\x00"
	// TrackID identifies a catalog entry for the stream relay.
	TrackID = "required,max=128"
)

// Query returns the trimmed value of the query parameter name after checking
// it against validator rules such as "required,max=128". Overlong values are
// rejected, never truncated.
func Query(r *http.Request, name, rules string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if err := validate.VarCtx(r.Context(), value, rules); err != nil {
		return "", queryError(name, err)
	}
	return value, nil
}

// QueryInt parses an optional integer parameter bounded by [min, max]. An
// absent parameter yields def.
func QueryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be an integer").
			WithDetails(map[string]string{name: "must be an integer"})
	}
	if n < min || n > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]string{name: "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)})
	}
	return n, nil
}

// queryError names the parameter; validator leaves Field empty for Var.
func queryError(name string, err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid query parameter")
	}
	fe := errs[0]
	msg := "invalid query parameter"
	if fe.Tag() == "required" {
		msg = "missing query parameter"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]string{name: describe(fe.Tag(), fe.Param())})
}
