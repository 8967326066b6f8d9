package llm

import "github.com/invopop/jsonschema"

// StrictSchema returns a copy of s that OpenAI's strict structured output
// accepts: every object lists all of its properties as required and the
// root carries no $schema or $id. s itself is left untouched.
func StrictSchema(s *jsonschema.Schema) *jsonschema.Schema {
	out := strictCopy(s)
	if out != nil {
		out.Version = ""
		out.ID = ""
	}
	return out
}

func strictCopy(s *jsonschema.Schema) *jsonschema.Schema {
	if s == nil {
		return nil
	}
	c := *s
	if s.Properties != nil {
		c.Properties = jsonschema.NewProperties()
		c.Required = make([]string, 0, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			c.Properties.Set(pair.Key, strictCopy(pair.Value))
			c.Required = append(c.Required, pair.Key)
		}
	}
	c.Items = strictCopy(s.Items)
	c.AnyOf = strictList(s.AnyOf)
	c.OneOf = strictList(s.OneOf)
	c.AllOf = strictList(s.AllOf)
	if s.Definitions != nil {
		c.Definitions = make(jsonschema.Definitions, len(s.Definitions))
		for name, def := range s.Definitions {
			c.Definitions[name] = strictCopy(def)
		}
	}
	return &c
}

func strictList(list []*jsonschema.Schema) []*jsonschema.Schema {
	if list == nil {
		return nil
	}
	out := make([]*jsonschema.Schema, len(list))
	for i, s := range list {
		out[i] = strictCopy(s)
	}
	return out
}
