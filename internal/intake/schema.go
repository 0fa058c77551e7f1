package intake

import "slices"

// Core field keys. These are always extracted.
const (
	FieldPatientName = "patient_name"
	FieldPhoneNumber = "phone_number"
	FieldEmail       = "email"
	FieldDateOfBirth = "date_of_birth"
	FieldTranscript  = "transcript"
)

// DefaultMaxDepth bounds how deep Extract will descend into nested objects.
const DefaultMaxDepth = 32

// Field is a named intake field and the label used when rendering it.
type Field struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// CoreFields are the contact and transcript fields every intake carries.
var CoreFields = []Field{
	{Key: FieldPatientName, Label: "Name"},
	{Key: FieldPhoneNumber, Label: "Phone"},
	{Key: FieldEmail, Label: "Email"},
	{Key: FieldDateOfBirth, Label: "Date of Birth"},
	{Key: FieldTranscript, Label: "Transcript"},
}

// DefaultQuestions are the data-collection questions configured on the
// intake agent.
var DefaultQuestions = []Field{
	{Key: "medical_documentation_supplied", Label: "Medical Documentation Supplied"},
	{Key: "cannabis_helping", Label: "Is Cannabis Helping"},
	{Key: "side_effects", Label: "Side Effects"},
	{Key: "questions_for_doctor", Label: "Questions for Doctor"},
	{Key: "medical_condition_renewal", Label: "Medical Condition (Renewal)"},
	{Key: "current_medications", Label: "Current Medications"},
	{Key: "condition_start_date", Label: "Condition Start Date"},
	{Key: "insurance_provider", Label: "Insurance"},
	{Key: "reason_for_visit", Label: "Reason for Visit"},
}

// Schema is the closed set of fields the extractor looks for.
type Schema struct {
	fields   []Field
	maxDepth int
}

// NewSchema builds a schema from the core fields followed by questions.
// Questions that repeat a core key, or each other, are dropped. A maxDepth
// of zero or less selects DefaultMaxDepth.
func NewSchema(questions []Field, maxDepth int) *Schema {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	fields := slices.Clone(CoreFields)
	seen := make(map[string]bool, len(fields)+len(questions))
	for _, f := range fields {
		seen[f.Key] = true
	}
	for _, q := range questions {
		if q.Key == "" || seen[q.Key] {
			continue
		}
		if q.Label == "" {
			q.Label = q.Key
		}
		seen[q.Key] = true
		fields = append(fields, q)
	}

	return &Schema{fields: fields, maxDepth: maxDepth}
}

// DefaultSchema returns the schema with the default questions.
func DefaultSchema() *Schema {
	return NewSchema(DefaultQuestions, DefaultMaxDepth)
}

// Fields returns the schema's fields in display order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// Questions returns the non-core fields in display order.
func (s *Schema) Questions() []Field {
	return slices.Clone(s.fields[len(CoreFields):])
}

// MaxDepth returns the recursion bound used by Extract.
func (s *Schema) MaxDepth() int {
	return s.maxDepth
}

// Fields is the flat result of an extraction. A key is present only when a
// value was found; an empty string means the sender explicitly sent "".
type Fields map[string]string

// Lookup returns the value for key and whether it was present.
func (f Fields) Lookup(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

// Keys returns the present keys sorted.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
