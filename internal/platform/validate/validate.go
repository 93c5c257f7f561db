// Package validate provides struct validation for operation inputs,
// mapping failures to project errors with field paths
package validate

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	perr "fedigate/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Svc holds a singleton validator and translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *Svc
)

// Init initializes the singleton validator with english translations and json tag names
func Init() *Svc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerAcct(v, trans)
		registerFocus(v, trans)

		vSvc = &Svc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Get returns the validator singleton, initializing on first use
func Get() *Svc {
	if vSvc == nil {
		return Init()
	}
	return vSvc
}

// Struct validates v and maps the first failure to an InvalidInput error
// carrying the json field path
func Struct(v any) error {
	s := Get()
	err := s.Validator.Struct(v)
	if err == nil {
		return nil
	}
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		fe := ves[0]
		msg := fe.Translate(s.Translator)
		return perr.WithField(perr.InvalidInputf("%s", msg), fieldPath(fe))
	}
	return perr.Wrap(err, perr.ErrorCodeInvalidInput, "validation failed")
}

// fieldPath drops the root struct name from the namespace: "Input.poll.choices" -> "poll.choices"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

// registerAcct adds the "acct" tag: a fediverse handle user@host with
// optional leading @
func registerAcct(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterValidation("acct", func(fl validator.FieldLevel) bool {
		return IsAcct(fl.Field().String())
	})
	_ = v.RegisterTranslation("acct", trans,
		func(ut ut.Translator) error {
			return ut.Add("acct", "{0} must be a user@host handle", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("acct", fe.Field())
			return t
		},
	)
}

// registerFocus adds the "focus" tag: a media focal point "x,y" with both
// coordinates in [-1,1]
func registerFocus(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterValidation("focus", func(fl validator.FieldLevel) bool {
		return IsFocus(fl.Field().String())
	})
	_ = v.RegisterTranslation("focus", trans,
		func(ut ut.Translator) error {
			return ut.Add("focus", "{0} must be \"x,y\" with x,y in [-1,1]", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("focus", fe.Field())
			return t
		},
	)
}

// IsAcct reports whether s is a plausible user@host handle.
// A leading @ is tolerated; scheme-qualified URLs are not handles
func IsAcct(s string) bool {
	s = strings.TrimPrefix(s, "@")
	if s == "" || strings.Contains(s, "://") {
		return false
	}
	user, host, ok := strings.Cut(s, "@")
	if !ok || user == "" || host == "" {
		return false
	}
	if strings.ContainsAny(user, " \t@") || strings.ContainsAny(host, " \t@/") {
		return false
	}
	return strings.Contains(host, ".") || host == "localhost"
}

// IsFocus reports whether s is a valid focal point expression
func IsFocus(s string) bool {
	if s == "" {
		return false
	}
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return false
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if errX != nil || errY != nil {
		return false
	}
	return x >= -1 && x <= 1 && y >= -1 && y <= 1
}
