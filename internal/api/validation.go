package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("hhmm", validateTimeOfDay)
	validate.RegisterValidation("service_kind", validateServiceKind)
	validate.RegisterValidation("weekday", validateWeekday)
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, err := timeslot.ParseTime(fl.Field().String())
	return err == nil
}

func validateServiceKind(fl validator.FieldLevel) bool {
	return appointment.ServiceKind(fl.Field().String()).Valid()
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, err := timeslot.ParseWeekday(fl.Field().String())
	return err == nil
}

var errInvalidBody = errors.New("could not parse JSON")

// decodeAndValidate reads a JSON body into dst and runs the struct's
// validate tags. The returned error message is safe to show to clients.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
