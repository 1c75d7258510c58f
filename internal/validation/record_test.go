package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRecord struct {
	FirstName string `json:"first_name" validate:"required,max=55,person_name"`
	Suffix    string `json:"suffix_name" validate:"omitempty,max=55,person_name"`
	Contact   string `json:"contact_number" validate:"required,contact_number"`
	Email     string `json:"gmail" validate:"required,email,max=255"`
	BirthDate string `json:"birth_date" validate:"required,wire_date"`
	Internal  string `json:"-" validate:"required"`
}

func validSample() sampleRecord {
	return sampleRecord{
		FirstName: "Ma. Cristina",
		Contact:   "+63 917-555-0101",
		Email:     "cristina@gmail.com",
		BirthDate: "1988-03-14",
		Internal:  "x",
	}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(validSample()))

	r := validSample()
	r.FirstName = "José O'Neil-Dela Cruz"
	r.Suffix = "Jr."
	assert.NoError(t, Struct(r))
}

func TestStruct_ReportsWireNames(t *testing.T) {
	r := validSample()
	r.FirstName = ""
	r.Email = "not-an-email"
	r.Internal = ""

	err := Struct(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRecord))

	var rerr *RecordError
	require.ErrorAs(t, err, &rerr)

	fields := map[string]string{}
	for _, f := range rerr.Fields {
		fields[f.Field] = f.Rule
	}
	assert.Equal(t, "required", fields["first_name"])
	assert.Equal(t, "email", fields["gmail"])
	assert.Equal(t, "required", fields["Internal"])
	assert.Contains(t, err.Error(), "first_name: required")
}

func TestStruct_CustomRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sampleRecord)
		field  string
		rule   string
	}{
		{"digits in name", func(r *sampleRecord) { r.FirstName = "R2D2" }, "first_name", "person_name"},
		{"blank name", func(r *sampleRecord) { r.FirstName = "   " }, "first_name", "person_name"},
		{"letters in contact", func(r *sampleRecord) { r.Contact = "0917-CALL-ME" }, "contact_number", "contact_number"},
		{"short contact", func(r *sampleRecord) { r.Contact = "12345" }, "contact_number", "contact_number"},
		{"bad date", func(r *sampleRecord) { r.BirthDate = "14/03/1988" }, "birth_date", "wire_date"},
		{"name too long", func(r *sampleRecord) { r.FirstName = strings.Repeat("A", 56) }, "first_name", "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validSample()
			tt.mutate(&r)

			var rerr *RecordError
			require.ErrorAs(t, Struct(r), &rerr)
			require.Len(t, rerr.Fields, 1)
			assert.Equal(t, tt.field, rerr.Fields[0].Field)
			assert.Equal(t, tt.rule, rerr.Fields[0].Rule)
		})
	}
}
