package unicorn

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Unicorn is one record of the remote collection.
type Unicorn struct {
	// ID is assigned by the remote store. Empty means the record is unsaved.
	ID string `json:"_id,omitempty"`

	Name  string `json:"name"`
	Age   Age    `json:"age"`
	Color string `json:"color"`

	// The hosted backend stores whatever a client sent, so a stored age may
	// be missing or not a number. ageUnknown marks that case and rawAge keeps
	// the stored JSON so a replace writes it back unchanged.
	ageUnknown bool
	rawAge     string
}

// wireUnicorn is the JSON shape of a record with the age left undecoded.
type wireUnicorn struct {
	ID    string          `json:"_id,omitempty"`
	Name  string          `json:"name"`
	Age   json.RawMessage `json:"age,omitempty"`
	Color string          `json:"color"`
}

// UnmarshalJSON implements json.Unmarshaler. An age that is missing or not
// numeric never fails decoding; the record reports AgeKnown() == false.
func (u *Unicorn) UnmarshalJSON(data []byte) error {
	var w wireUnicorn
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*u = Unicorn{ID: w.ID, Name: w.Name, Color: w.Color}
	if age, ok := decodeAge(w.Age); ok {
		u.Age = age
	} else {
		u.ageUnknown = true
		u.rawAge = string(bytes.TrimSpace(w.Age))
	}
	return nil
}

// MarshalJSON implements json.Marshaler. An unknown age is written back as
// it was stored, or omitted when the record had none.
func (u Unicorn) MarshalJSON() ([]byte, error) {
	w := wireUnicorn{ID: u.ID, Name: u.Name, Color: u.Color}
	switch {
	case !u.ageUnknown:
		w.Age = json.RawMessage(strconv.Itoa(int(u.Age)))
	case u.rawAge != "":
		w.Age = json.RawMessage(u.rawAge)
	}
	return json.Marshal(w)
}

// Saved reports whether the record already exists remotely.
func (u Unicorn) Saved() bool {
	return u.ID != ""
}

// Payload returns a copy of u suitable for a write request.
// The identifier is stripped for saved records because the collection
// endpoint addresses them through the URL path instead.
func (u Unicorn) Payload() Unicorn {
	p := u
	if p.Saved() {
		p.ID = ""
	}
	return p
}

// AgeKnown reports whether the stored age parsed as a number.
func (u Unicorn) AgeKnown() bool {
	return !u.ageUnknown
}

// WithAge returns a copy of u with a known age of n.
func (u Unicorn) WithAge(n int) Unicorn {
	u.Age = Age(n)
	u.ageUnknown = false
	u.rawAge = ""
	return u
}

// Status is the age class of the record. An unknown age is StatusUnknown.
func (u Unicorn) Status() Status {
	if u.ageUnknown {
		return StatusUnknown
	}
	return StatusOf(u.Age)
}

// Label is the display label of the record's age class.
func (u Unicorn) Label() string {
	return u.Status().Label()
}

// AgeValue returns the age, or nil when it is unknown.
func (u Unicorn) AgeValue() *int {
	if u.ageUnknown {
		return nil
	}
	n := int(u.Age)
	return &n
}

// AgeText is the age as shown to a person: the number, or whatever text was
// stored when it is not one.
func (u Unicorn) AgeText() string {
	if !u.ageUnknown {
		return u.Age.String()
	}
	var s string
	if err := json.Unmarshal([]byte(u.rawAge), &s); err == nil {
		return s
	}
	if u.rawAge == "null" {
		return ""
	}
	return u.rawAge
}

// Age is a unicorn's age in years.
type Age int

// String returns the decimal form of the age.
func (a Age) String() string {
	return strconv.Itoa(int(a))
}

// decodeAge reads a JSON number or numeric string. Fractions are truncated.
// Missing, null and non-numeric values report false.
func decodeAge(raw json.RawMessage) (Age, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n, ok := ParseAge(s)
		return Age(n), ok
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	if n, err := num.Int64(); err == nil {
		return Age(clampInt64(n)), true
	}
	f, err := num.Float64()
	if err != nil {
		return 0, false
	}
	n, ok := floatToInt(f)
	return Age(n), ok
}
