package models

import (
	"fmt"
	"sort"
	"strings"
)

// ClinicalData maps an attribute label to its value. It is opaque prompt context
// and is never checked for medical correctness.
type ClinicalData map[string]string

const (
	maxClinicalFields     = 32
	maxClinicalValueRunes = 500
)

// clinicalFieldLabels maps client field names to the labels stored on a session
var clinicalFieldLabels = map[string]string{
	"age":                 "Age",
	"gender":              "Gender",
	"weight":              "Weight",
	"height":              "Height",
	"blood_pressure":      "Blood pressure",
	"fasting_blood_sugar": "Fasting blood sugar",
	"cholesterol":         "Cholesterol",
	"current_medications": "Current medications",
	"medical_history":     "Medical history",
}

// ClinicalFieldLabel returns the stored label for a known client field name
func ClinicalFieldLabel(field string) (string, bool) {
	label, ok := clinicalFieldLabels[field]
	return label, ok
}

// NormalizeClinicalData validates client-supplied fields and renames known ones
// through the field mapping table. Unknown keys are kept as-is.
func NormalizeClinicalData(in map[string]string) (ClinicalData, error) {
	if len(in) == 0 {
		return ClinicalData{}, nil
	}
	if len(in) > maxClinicalFields {
		return nil, fmt.Errorf("%w: at most %d clinical fields are allowed", ErrInvalidInput, maxClinicalFields)
	}

	out := make(ClinicalData, len(in))
	for field, value := range in {
		key := strings.TrimSpace(field)
		if key == "" {
			return nil, fmt.Errorf("%w: clinical field names must not be empty", ErrInvalidInput)
		}
		if len([]rune(value)) > maxClinicalValueRunes {
			return nil, fmt.Errorf("%w: clinical field %q exceeds %d characters", ErrInvalidInput, key, maxClinicalValueRunes)
		}
		if label, ok := ClinicalFieldLabel(key); ok {
			key = label
		}
		if _, dup := out[key]; dup {
			// "age" and "Age" both land on Age
			return nil, fmt.Errorf("%w: clinical field %q is given more than once", ErrInvalidInput, key)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// SortedKeys returns the labels in a stable order for prompt rendering
func (c ClinicalData) SortedKeys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
