package forms

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() Input {
	return Input{
		Name:    "Ada Lovelace",
		Email:   "Ada@Example.com",
		Company: "Analytical Engines",
		Message: "We would like a demo.",
	}
}

func TestBuild_ValidContact(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	s, err := Build(validInput(), "10.0.0.1", "curl/8", now)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, TypeContact, s.Type)
	assert.Equal(t, "ada@example.com", s.Email)
	assert.Equal(t, "10.0.0.1", s.IP)
	assert.Equal(t, time.UTC, s.CreatedAt.Location())
}

func TestBuild_RequiredFields(t *testing.T) {
	_, err := Build(Input{}, "", "", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "is required", verr.Fields["email"])
	assert.Equal(t, "is required", verr.Fields["message"])
}

func TestBuild_MessageOptionalForNewsletter(t *testing.T) {
	in := Input{Type: "Newsletter", Name: "Ada", Email: "ada@example.com"}
	s, err := Build(in, "", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, TypeNewsletter, s.Type)
}

func TestBuild_InvalidFields(t *testing.T) {
	in := validInput()
	in.Email = "not-an-email"
	in.Type = "spam"
	in.Phone = "call me maybe"
	in.Name = strings.Repeat("x", 101)

	_, err := Build(in, "", "", time.Now())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Contains(t, verr.Fields["type"], "must be one of")
	assert.Equal(t, "must be a valid phone number", verr.Fields["phone"])
	assert.Equal(t, "must be at most 100 characters", verr.Fields["name"])
}

func TestSanitize_StripsMarkupAndControlChars(t *testing.T) {
	in := Input{
		Name:      "  <b>Ada</b>\x07  Lovelace ",
		Email:     " ADA@EXAMPLE.COM ",
		Message:   "Hello <script>alert(1)</script>there\nsecond line & more",
		Interests: []string{"<i>ai</i>", "   "},
	}
	out := in.Sanitize()

	assert.Equal(t, "Ada Lovelace", out.Name)
	assert.Equal(t, "ada@example.com", out.Email)
	assert.Equal(t, "Hello there\nsecond line & more", out.Message)
	assert.Equal(t, []string{"ai"}, out.Interests)
	assert.Equal(t, TypeContact, out.Type)
}

func TestSanitize_EntityEncodedMarkupDoesNotSurvive(t *testing.T) {
	in := validInput()
	in.Message = "&lt;script&gt;alert(1)&lt;/script&gt;Hi &amp;lt;img src=x onerror=alert(1)&amp;gt;"
	s, err := Build(in, "", "", time.Now())
	require.NoError(t, err)
	assert.NotContains(t, s.Message, "<")
	assert.NotContains(t, s.Message, ">")
	assert.NotContains(t, s.Message, "alert(1)</")
	assert.True(t, strings.HasPrefix(s.Message, "Hi"), s.Message)

	assert.Equal(t, "x", CleanLine("&lt;b&gt;x&lt;/b&gt;"))
	assert.NotContains(t, CleanText("a <b>b</b> &lt;i&gt;c"), "<")
	assert.Equal(t, "O'Brien & Sons", CleanLine("O'Brien &amp; Sons"))
}

func TestBuild_TruncatesUserAgentOnRuneBoundary(t *testing.T) {
	ua := strings.Repeat("a", 511) + "é" + "tail"
	s, err := Build(validInput(), "", ua, time.Now())
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(s.UserAgent))
	assert.Equal(t, strings.Repeat("a", 511), s.UserAgent)

	assert.Equal(t, "ab", truncate("abé", 3))
	assert.Equal(t, "abé", truncate("abé", 4))
}

func TestFilter_Normalize(t *testing.T) {
	assert.Equal(t, DefaultListLimit, Filter{}.Normalize().Limit)
	assert.Equal(t, MaxListLimit, Filter{Limit: 10_000}.Normalize().Limit)
	assert.True(t, Filter{}.Matches(Submission{Type: TypeOnboarding}))
	assert.False(t, Filter{Type: TypeContact}.Matches(Submission{Type: TypeOnboarding}))
}
