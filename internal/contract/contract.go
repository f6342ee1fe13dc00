// Package contract defines the client/server wire contract shared by the
// summarize and ask endpoints: form field names, request options and the
// result envelope.
package contract

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint paths.
const (
	PathSummarize = "/summarize"
	PathAsk       = "/ask"
)

// Multipart field names.
const (
	FieldFile            = "file"
	FieldQuestion        = "question"
	FieldModelName       = "model_name"
	FieldTemperature     = "temperature"
	FieldAllowNonEnglish = "allow_non_english"
	FieldStartPage       = "start_page"
	FieldEndPage         = "end_page"
)

// PDFContentType is the content type the client declares for every upload.
const PDFContentType = "application/pdf"

// Models lists the model identifiers accepted in model_name.
var Models = []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "gpt-4.1", "gpt-3.5-turbo"}

// UploadedDocument is a file transferred by value for a single request.
type UploadedDocument struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Options is the request configuration sent alongside the file. Zero values
// (and nil pointers) mean "not set": the field is not sent and the server
// applies its own default.
type Options struct {
	ModelName       string   `form:"model_name" validate:"omitempty,oneof=gpt-4o-mini gpt-4o gpt-4.1-mini gpt-4.1 gpt-3.5-turbo"`
	Temperature     *float64 `form:"temperature" validate:"omitempty,gte=0,lte=1"`
	AllowNonEnglish *bool    `form:"allow_non_english"`
	StartPage       int      `form:"start_page" validate:"omitempty,min=1"`
	EndPage         int      `form:"end_page" validate:"omitempty,min=1,gtefield=StartPage"`
}

// Validate reports option values that must not be submitted.
func (o Options) Validate() error {
	return Validator.Struct(o)
}

// NonEnglishAllowed reports the allow_non_english flag, false when unset.
func (o Options) NonEnglishAllowed() bool {
	return o.AllowNonEnglish != nil && *o.AllowNonEnglish
}

// Values encodes the set options as form values.
func (o Options) Values() url.Values {
	v := url.Values{}
	if o.ModelName != "" {
		v.Set(FieldModelName, o.ModelName)
	}
	if o.Temperature != nil {
		v.Set(FieldTemperature, formatDecimal(*o.Temperature))
	}
	if o.AllowNonEnglish != nil {
		v.Set(FieldAllowNonEnglish, strconv.FormatBool(*o.AllowNonEnglish))
	}
	if o.StartPage != 0 {
		v.Set(FieldStartPage, strconv.Itoa(o.StartPage))
	}
	if o.EndPage != 0 {
		v.Set(FieldEndPage, strconv.Itoa(o.EndPage))
	}
	return v
}

// FieldError reports a form value that could not be parsed.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ParseOptions decodes options from submitted form values. Empty values are
// treated as absent. The result is not validated; call Validate.
func ParseOptions(form url.Values) (Options, error) {
	var o Options
	o.ModelName = strings.TrimSpace(form.Get(FieldModelName))

	if raw := strings.TrimSpace(form.Get(FieldTemperature)); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Options{}, &FieldError{Field: FieldTemperature, Value: raw, Err: err}
		}
		o.Temperature = &t
	}
	if raw := strings.TrimSpace(form.Get(FieldAllowNonEnglish)); raw != "" {
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return Options{}, &FieldError{Field: FieldAllowNonEnglish, Value: raw, Err: err}
		}
		o.AllowNonEnglish = &b
	}
	var err error
	if o.StartPage, err = parsePage(form, FieldStartPage); err != nil {
		return Options{}, err
	}
	if o.EndPage, err = parsePage(form, FieldEndPage); err != nil {
		return Options{}, err
	}
	return o, nil
}

func parsePage(form url.Values, field string) (int, error) {
	raw := strings.TrimSpace(form.Get(field))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &FieldError{Field: field, Value: raw, Err: err}
	}
	return n, nil
}

// formatDecimal renders a float the way the form has always carried it:
// always with a fractional part ("0.0", "0.7").
func formatDecimal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Float returns a pointer to f, for building Options literals.
func Float(f float64) *float64 { return &f }

// Bool returns a pointer to b, for building Options literals.
func Bool(b bool) *bool { return &b }
