// utils/validator.go - Input validation
package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	TitleMinLength    = 10
	TitleMaxLength    = 255
	AbstractMinLength = 100
	NameMaxLength     = 255
	LinkMaxLength     = 500
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	validate   = validator.New(validator.WithRequiredStructEnabled())
)

// ProjectFields holds the user-editable text of a research project.
type ProjectFields struct {
	Title             string
	Abstract          string
	StudentAuthorName string
	CollaboratorNames string
	ProjectSponsor    string
	GithubLink        string
	VideoLink         string
	DatePresented     *time.Time
}

// Normalize trims every text field and truncates DatePresented to a UTC calendar date.
func (p ProjectFields) Normalize() ProjectFields {
	p.Title = SanitizeInput(p.Title)
	p.Abstract = SanitizeInput(p.Abstract)
	p.StudentAuthorName = SanitizeInput(p.StudentAuthorName)
	p.CollaboratorNames = SanitizeInput(p.CollaboratorNames)
	p.ProjectSponsor = SanitizeInput(p.ProjectSponsor)
	p.GithubLink = SanitizeInput(p.GithubLink)
	p.VideoLink = SanitizeInput(p.VideoLink)
	if p.DatePresented != nil {
		d := DateOnly(*p.DatePresented)
		p.DatePresented = &d
	}
	return p
}

// ValidateProjectFields runs every field rule and collects all failures.
func ValidateProjectFields(p ProjectFields, now time.Time) FieldErrors {
	errs := FieldErrors{}
	check := func(field string, err error) {
		if err != nil {
			errs.Add(field, err.Error())
		}
	}
	check("title", ValidateTitle(p.Title))
	check("abstract", ValidateAbstract(p.Abstract))
	check("student_author_name", ValidateStudentAuthorName(p.StudentAuthorName))
	check("project_sponsor", ValidateProjectSponsor(p.ProjectSponsor))
	check("github_link", ValidateOptionalURL(p.GithubLink))
	check("video_link", ValidateOptionalURL(p.VideoLink))
	check("date_presented", ValidateDatePresented(p.DatePresented, now))
	return errs
}

func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	switch {
	case n == 0:
		return fmt.Errorf("Title is required")
	case n < TitleMinLength:
		return fmt.Errorf("Title must be at least %d characters long", TitleMinLength)
	case n > TitleMaxLength:
		return fmt.Errorf("Title must be at most %d characters long", TitleMaxLength)
	}
	return nil
}

func ValidateAbstract(abstract string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(abstract))
	if n == 0 {
		return fmt.Errorf("Abstract is required")
	}
	if n < AbstractMinLength {
		return fmt.Errorf("Abstract must be at least %d characters long", AbstractMinLength)
	}
	return nil
}

func ValidateStudentAuthorName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return fmt.Errorf("Student author name is required")
	}
	if n > NameMaxLength {
		return fmt.Errorf("Student author name must be at most %d characters long", NameMaxLength)
	}
	return nil
}

func ValidateProjectSponsor(sponsor string) error {
	if utf8.RuneCountInString(strings.TrimSpace(sponsor)) > NameMaxLength {
		return fmt.Errorf("Project sponsor must be at most %d characters long", NameMaxLength)
	}
	return nil
}

// ValidateOptionalURL accepts an empty value or an absolute http(s) URL.
func ValidateOptionalURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if len(raw) > LinkMaxLength {
		return fmt.Errorf("URL must be at most %d characters long", LinkMaxLength)
	}
	if err := validate.Var(raw, "url"); err != nil {
		return fmt.Errorf("Enter a valid URL")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("Enter a valid URL")
	}
	return nil
}

// ValidateDatePresented rejects dates after the current calendar day.
func ValidateDatePresented(d *time.Time, now time.Time) error {
	if d == nil {
		return nil
	}
	if DateOnly(*d).After(DateOnly(now)) {
		return fmt.Errorf("Date presented cannot be in the future")
	}
	return nil
}

// DateOnly truncates t to midnight UTC of its own calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword checks password strength
func ValidatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}

	return true, ""
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
