package reports

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports json field names and knows
// the "category" and "report_status" rules.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return ValidCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("report_status", func(fl validator.FieldLevel) bool {
		return ValidStatus(fl.Field().String())
	})
	return v
}

type CreateInput struct {
	Title              string   `json:"title" validate:"required,max=200"`
	Description        string   `json:"description" validate:"required,max=1000"`
	Latitude           *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude          *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Address            string   `json:"address" validate:"max=500"`
	Category           string   `json:"category" validate:"required,category"`
	AdditionalComments string   `json:"additionalComments" validate:"max=1000"`
}

type AdminStatusInput struct {
	Status     string  `json:"status" validate:"required,report_status"`
	AdminNotes *string `json:"adminNotes" validate:"omitempty,max=500"`
}

type AssignInput struct {
	AdminID string `json:"adminId" validate:"required"`
}

type OwnerStatusInput struct {
	Status string `json:"status"`
}
