package storage

import (
	"cmp"
	"strings"
	"time"
)

// Application is one crisis-relief case. JSON names match the case API, so
// the same type is stored locally, served and decoded by the client.
type Application struct {
	ID         uint64 `json:"application_id" toml:"application_id"`
	FirstName  string `json:"first_name" toml:"first_name" validate:"required,max=55,person_name"`
	MiddleName string `json:"middle_name" toml:"middle_name" validate:"omitempty,max=55,person_name"`
	LastName   string `json:"last_name" toml:"last_name" validate:"required,max=55,person_name"`
	SuffixName string `json:"suffix_name" toml:"suffix_name" validate:"omitempty,max=55,person_name"`

	Gender      string `json:"gender" toml:"gender" validate:"required,max=30"`
	CivilStatus string `json:"civil_status" toml:"civil_status" validate:"required,max=50"`
	BirthDate   string `json:"birth_date" toml:"birth_date" validate:"required,wire_date"`
	Age         int    `json:"age" toml:"age" validate:"gte=0,lte=150"`

	ContactNumber string `json:"contact_number" toml:"contact_number" validate:"required,max=20,contact_number"`
	Gmail         string `json:"gmail" toml:"gmail" validate:"required,email,max=255"`
	HouseNo       string `json:"house_no" toml:"house_no" validate:"required,max=100"`
	Street        string `json:"street" toml:"street" validate:"required,max=100"`
	Subdivision   string `json:"subdivision" toml:"subdivision" validate:"omitempty,max=100"`
	Barangay      string `json:"barangay" toml:"barangay" validate:"required,max=100"`
	City          string `json:"city" toml:"city" validate:"required,max=100"`

	Crisis       string `json:"crisis" toml:"crisis" validate:"required,max=30"`
	Situation    string `json:"situation" toml:"situation" validate:"required,max=30"`
	IncidentDate string `json:"incident_date" toml:"incident_date" validate:"omitempty,wire_date"`

	AttachedFileURL string `json:"attached_file_url" toml:"attached_file_url" validate:"omitempty,url"`

	IsDeleted bool      `json:"is_deleted" toml:"is_deleted"`
	CreatedAt time.Time `json:"created_at" toml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" toml:"updated_at"`
}

// FullName renders "Last, First Middle Suffix", skipping empty parts.
func (a *Application) FullName() string {
	given := strings.Join(nonEmpty(a.FirstName, a.MiddleName, a.SuffixName), " ")
	switch {
	case a.LastName == "":
		return given
	case given == "":
		return a.LastName
	default:
		return a.LastName + ", " + given
	}
}

// AgeAt returns completed years between the birth date and now, or -1 when
// the birth date does not parse.
func (a *Application) AgeAt(now time.Time) int {
	born, err := time.Parse("2006-01-02", a.BirthDate)
	if err != nil {
		return -1
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Compare orders applications by last, first, middle and suffix name, then
// ID so the order is total.
func Compare(a, b *Application) int {
	return cmp.Or(
		cmp.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)),
		cmp.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)),
		cmp.Compare(strings.ToLower(a.MiddleName), strings.ToLower(b.MiddleName)),
		cmp.Compare(strings.ToLower(a.SuffixName), strings.ToLower(b.SuffixName)),
		cmp.Compare(a.ID, b.ID),
	)
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
