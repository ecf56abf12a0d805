package identity

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	MinimumAge = 18
	dateLayout = "2006-01-02"
)

// Departments are the expedition codes printed on a Bolivian CI.
var Departments = map[string]string{
	"LP": "La Paz",
	"CB": "Cochabamba",
	"SC": "Santa Cruz",
	"OR": "Oruro",
	"PT": "Potosí",
	"TJ": "Tarija",
	"CH": "Chuquisaca",
	"BN": "Beni",
	"PD": "Pando",
}

var (
	// 5 to 10 digits, optionally followed by a duplicate complement such as "-1K"
	ciPattern       = regexp.MustCompile(`^(\d{5,10})(?:[\s-]*[0-9][A-Z])?$`)
	ownerKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

	clock = time.Now

	registerOnce sync.Once
)

// NormalizeCI returns the digits of a CI number without its complement.
func NormalizeCI(raw string) (string, bool) {
	m := ciPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(raw)))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func NormalizeDepartment(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	_, ok := Departments[code]
	return code, ok
}

func IsOwnerKey(s string) bool {
	return ownerKeyPattern.MatchString(s)
}

// IsAdult reports whether a YYYY-MM-DD birth date is at least MinimumAge years before now.
func IsAdult(dob string, now time.Time) bool {
	born, err := time.Parse(dateLayout, dob)
	if err != nil || born.Year() < 1900 {
		return false
	}
	return !born.AddDate(MinimumAge, 0, 0).After(now)
}

// RegisterValidations installs the identity rules on v.
func RegisterValidations(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"bo_ci": func(fl validator.FieldLevel) bool {
			_, ok := NormalizeCI(fl.Field().String())
			return ok
		},
		"bo_department": func(fl validator.FieldLevel) bool {
			_, ok := NormalizeDepartment(fl.Field().String())
			return ok
		},
		"owner_key": func(fl validator.FieldLevel) bool {
			return IsOwnerKey(fl.Field().String())
		},
		"adult_dob": func(fl validator.FieldLevel) bool {
			return IsAdult(fl.Field().String(), clock())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// registerBindingValidations installs the rules on gin's shared validator.
func registerBindingValidations() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := RegisterValidations(v); err != nil {
				panic(err)
			}
		}
	})
}
