package web

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hpungsan/unicorns/internal/unicorn"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// unicornForm is the add/edit form as submitted. Age stays a string so a bad
// value can be shown back to the user unchanged.
type unicornForm struct {
	Name  string `validate:"required"`
	Age   string `validate:"required,number"`
	Color string `validate:"required"`
}

// parseUnicornForm reads and trims the form fields.
func parseUnicornForm(r *http.Request) (unicornForm, error) {
	if err := r.ParseForm(); err != nil {
		return unicornForm{}, err
	}
	return unicornForm{
		Name:  strings.TrimSpace(r.FormValue("name")),
		Age:   strings.TrimSpace(r.FormValue("age")),
		Color: strings.TrimSpace(r.FormValue("color")),
	}, nil
}

// formFrom pre-populates the form with a stored record.
func formFrom(u unicorn.Unicorn) unicornForm {
	return unicornForm{
		Name:  u.Name,
		Age:   u.AgeText(),
		Color: u.Color,
	}
}

// validate returns one message per invalid field, keyed by input name.
// A nil map means the form is valid.
func (f unicornForm) validate() map[string]string {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return map[string]string{"name": err.Error()}
	}

	msgs := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := strings.ToLower(fe.Field())
		if _, seen := msgs[key]; seen {
			continue
		}
		switch fe.Tag() {
		case "required":
			msgs[key] = fe.Field() + " is required"
		case "number":
			msgs[key] = fe.Field() + " must be a whole number of 0 or more"
		default:
			msgs[key] = fe.Field() + " is invalid"
		}
	}
	return msgs
}

// toUnicorn converts a validated form into a record with the given id.
func (f unicornForm) toUnicorn(id string) unicorn.Unicorn {
	age, _ := unicorn.ParseAge(f.Age)
	return unicorn.Unicorn{
		ID:    id,
		Name:  f.Name,
		Age:   unicorn.Age(age),
		Color: f.Color,
	}
}
