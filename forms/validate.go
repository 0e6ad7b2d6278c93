package forms

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Input é o corpo aceito pelos endpoints de formulário.
type Input struct {
	Type      Type     `json:"type" validate:"omitempty,oneof=contact onboarding newsletter"`
	Name      string   `json:"name" validate:"required,max=100"`
	Email     string   `json:"email" validate:"required,email,max=254"`
	Company   string   `json:"company" validate:"max=200"`
	Phone     string   `json:"phone" validate:"omitempty,max=40,phone"`
	Role      string   `json:"role" validate:"max=100"`
	Message   string   `json:"message" validate:"required_if=Type contact,max=5000"`
	Interests []string `json:"interests" validate:"max=20,dive,max=60"`
	Source    string   `json:"source" validate:"max=200"`
}

// ValidationError carrega o motivo por campo (nome JSON do campo).
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

var ErrValidation = errors.New("forms: validation failed")

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

var (
	validate  = newValidator()
	policy    = bluemonday.StrictPolicy()
	phoneExpr = regexp.MustCompile(`^[0-9+()\-. ]{5,40}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneExpr.MatchString(fl.Field().String())
	})
	return v
}

// Sanitize remove markup e caracteres de controle e normaliza espaços.
// O e-mail também vai para minúsculas.
func (in Input) Sanitize() Input {
	out := Input{
		Type:    Type(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		Name:    clean(in.Name, false),
		Email:   strings.ToLower(clean(in.Email, false)),
		Company: clean(in.Company, false),
		Phone:   clean(in.Phone, false),
		Role:    clean(in.Role, false),
		Message: clean(in.Message, true),
		Source:  clean(in.Source, false),
	}
	if out.Type == "" {
		out.Type = TypeContact
	}
	for _, it := range in.Interests {
		if c := clean(it, false); c != "" {
			out.Interests = append(out.Interests, c)
		}
	}
	return out
}

// clean aplica a política estrita do bluemonday (sem tags) e descarta
// caracteres de controle; multiline preserva quebras de linha.
func clean(s string, multiline bool) string {
	s = stripMarkup(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' && multiline {
			return r
		}
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if !multiline {
		s = strings.Join(strings.Fields(s), " ")
	}
	return strings.TrimSpace(s)
}

// CleanLine e CleanText aplicam a mesma limpeza a textos fora de Input.
func CleanLine(s string) string { return clean(s, false) }
func CleanText(s string) string { return clean(s, true) }

// stripMarkup decodifica entidades e reaplica a política até estabilizar,
// então "&lt;script&gt;" some junto com "<script>". < e > que sobram
// continuam escapados; nunca voltam como markup.
func stripMarkup(s string) string {
	s = policy.Sanitize(s)
	for i := 0; i < maxSanitizePasses; i++ {
		next := policy.Sanitize(html.UnescapeString(s))
		if next == s {
			break
		}
		s = next
	}
	return unescapeBasic(s)
}

const maxSanitizePasses = 4

var basicEntities = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`, "&quot;", `"`)

func unescapeBasic(s string) string { return basicEntities.Replace(s) }

// Validate valida um Input já sanitizado.
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate form: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = reason(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "phone":
		return "must be a valid phone number"
	}
	return "is invalid"
}

// Build sanitiza, valida e monta a Submission. IP/UserAgent vêm do chamador.
func Build(in Input, ip, userAgent string, now time.Time) (Submission, error) {
	in = in.Sanitize()
	if err := in.Validate(); err != nil {
		return Submission{}, err
	}
	return Submission{
		ID:        uuid.NewString(),
		Type:      in.Type,
		Name:      in.Name,
		Email:     in.Email,
		Company:   in.Company,
		Phone:     in.Phone,
		Role:      in.Role,
		Message:   in.Message,
		Interests: in.Interests,
		Source:    in.Source,
		IP:        ip,
		UserAgent: truncate(userAgent, 512),
		CreatedAt: now.UTC(),
	}, nil
}

// truncate corta em até n bytes sem partir um rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
