package models

// Condition is a medical topic a session is scoped to
type Condition struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// DefaultConditions is served when the knowledge base is unreachable or empty
var DefaultConditions = map[string]string{
	"cond_type_2_diabetes": "Type 2 Diabetes",
	"cond_hypertension":    "Hypertension",
	"cond_asthma":          "Asthma",
}
