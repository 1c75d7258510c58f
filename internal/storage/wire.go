package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON accepts gender, crisis and situation either as names or as
// the lookup rows the case API eager-loads, such as
// {"gender_id": 1, "gender": "Male"}. Dates sent as timestamps are cut back
// to their calendar day.
func (a *Application) UnmarshalJSON(data []byte) error {
	type plain Application
	aux := struct {
		*plain
		Gender       lookupName `json:"gender"`
		Crisis       lookupName `json:"crisis"`
		Situation    lookupName `json:"situation"`
		BirthDate    wireDay    `json:"birth_date"`
		IncidentDate wireDay    `json:"incident_date"`
	}{
		plain:     (*plain)(a),
		Gender:    lookupName{column: "gender"},
		Crisis:    lookupName{column: "crisis"},
		Situation: lookupName{column: "situation"},
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Gender = aux.Gender.name
	a.Crisis = aux.Crisis.name
	a.Situation = aux.Situation.name
	a.BirthDate = string(aux.BirthDate)
	a.IncidentDate = string(aux.IncidentDate)
	return nil
}

// lookupName is a name column that may arrive as its related row.
type lookupName struct {
	column string
	name   string
}

func (l *lookupName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		l.name = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &l.name)
	}

	var row map[string]json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("%s: %w", l.column, err)
	}
	raw, ok := row[l.column]
	if !ok {
		return fmt.Errorf("%s: related row has no %q column", l.column, l.column)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		l.name = ""
		return nil
	}
	return json.Unmarshal(raw, &l.name)
}

// wireDay is a date that may arrive as "2006-01-02" or as a full timestamp.
type wireDay string

func (d *wireDay) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*d = ""
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, *s); err == nil {
		*d = wireDay(t.Format("2006-01-02"))
		return nil
	}
	*d = wireDay(*s)
	return nil
}
