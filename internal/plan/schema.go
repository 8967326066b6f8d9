package plan

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the JSON schema the model output must follow.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

var (
	PlanSchema    = GenerateSchema[Plan]()
	WeekSchema    = GenerateSchema[Week]()
	DaySchema     = GenerateSchema[Day]()
	SessionSchema = GenerateSchema[Session]()
)

// SchemaFor returns the schema of the fragment addressed at level l.
func SchemaFor(l Level) *jsonschema.Schema {
	switch l {
	case LevelWeek:
		return WeekSchema
	case LevelDay:
		return DaySchema
	case LevelSession:
		return SessionSchema
	default:
		return PlanSchema
	}
}

// SchemaText renders a schema as indented JSON for embedding in a prompt.
func SchemaText(s *jsonschema.Schema) string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
