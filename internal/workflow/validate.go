package workflow

import (
	"errors"
	"reflect"
	"strings"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

// DefaultPhoneRegion is used to parse phone numbers without a country prefix.
const DefaultPhoneRegion = "ES"

// Validator は注文入力の検証と正規化を行う
type Validator struct {
	validate *validator.Validate
	region   string
}

// NewValidator creates a validator parsing local numbers in region.
func NewValidator(region string) *Validator {
	if region == "" {
		region = DefaultPhoneRegion
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, region: strings.ToUpper(region)}
}

// Draft は作成リクエストを検証し、正規化したコピーを返す
func (v *Validator) Draft(draft model.OrderDraft) (model.OrderDraft, error) {
	out := draft
	out.Client = strings.TrimSpace(draft.Client)
	out.Address = strings.TrimSpace(draft.Address)
	out.Description = strings.TrimSpace(draft.Description)
	out.Notes = strings.TrimSpace(draft.Notes)
	if out.Priority == "" {
		out.Priority = model.PriorityMedium
	}

	if err := v.structErr(out); err != nil {
		return model.OrderDraft{}, err
	}

	phone, err := v.Phone(draft.Phone)
	if err != nil {
		return model.OrderDraft{}, err
	}
	out.Phone = phone

	// 空行や数量0の行は無視する
	out.Products = nil
	for _, item := range draft.Products {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || !item.RequestedQty.IsPositive() {
			continue
		}
		normalized, err := v.Item(item)
		if err != nil {
			return model.OrderDraft{}, err
		}
		out.Products = append(out.Products, normalized)
	}
	if len(out.Products) == 0 {
		return model.OrderDraft{}, apperror.Validation("Añade al menos un producto").
			WithDetails(apperror.Detail{Path: "productos", Info: "at least one product with quantity > 0 is required"})
	}

	return out, nil
}

// Item は明細を検証する
func (v *Validator) Item(item model.ProductDraft) (model.ProductDraft, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Unit == "" {
		item.Unit = model.UnitUnits
	}
	if err := v.structErr(item); err != nil {
		return model.ProductDraft{}, err
	}
	if !item.RequestedQty.IsPositive() {
		return model.ProductDraft{}, apperror.Validation("La cantidad debe ser mayor que 0").
			WithDetails(apperror.Detail{Path: "cantidad_solicitada", Info: "cantidad_solicitada must be greater than 0"})
	}
	return item, nil
}

// Patch は更新リクエストを検証する
func (v *Validator) Patch(patch model.OrderPatch) (model.OrderPatch, error) {
	if patch.Empty() {
		return patch, apperror.Validation("No hay campos para actualizar")
	}
	out := patch
	if patch.Client != nil {
		s := strings.TrimSpace(*patch.Client)
		if s == "" {
			return patch, requiredErr("cliente")
		}
		out.Client = &s
	}
	if patch.Address != nil {
		s := strings.TrimSpace(*patch.Address)
		if s == "" {
			return patch, requiredErr("direccion")
		}
		out.Address = &s
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return patch, apperror.Validation("Prioridad inválida").
			WithDetails(apperror.Detail{Path: "prioridad", Info: "prioridad is invalid"})
	}
	if patch.Phone != nil {
		phone, err := v.Phone(*patch.Phone)
		if err != nil {
			return patch, err
		}
		out.Phone = &phone
	}
	return out, nil
}

// Phone normalises raw to E.164. An empty value stays empty.
func (v *Validator) Phone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, v.region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "", apperror.Validation("Teléfono inválido").
			WithDetails(apperror.Detail{Path: "telefono", Info: "telefono is not a valid phone number"})
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

func (v *Validator) structErr(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Validation(err.Error())
	}
	details := make([]apperror.Detail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, apperror.Detail{Path: fe.Field(), Info: fieldMessage(fe)})
	}
	return apperror.Validation("Datos inválidos").WithDetails(details...)
}

func requiredErr(field string) error {
	return apperror.Validation("Datos inválidos").
		WithDetails(apperror.Detail{Path: field, Info: field + " is required"})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
