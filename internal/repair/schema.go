package repair

import (
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const blockSchemaJSON = `{
  "type": "object",
  "properties": {
    "html":       {"type": "string", "minLength": 1},
    "markup":     {"type": "string", "minLength": 1},
    "css":        {"type": "string"},
    "stylesheet": {"type": "string"}
  },
  "anyOf": [{"required": ["html"]}, {"required": ["markup"]}]
}`

const pageSchemaJSON = `{
  "type": "object",
  "required": ["sections"],
  "properties": {
    "sections": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "reference":  {"type": "string"},
          "id":         {"type": "string"},
          "type":       {"type": "string"},
          "html":       {"type": "string", "minLength": 1},
          "markup":     {"type": "string", "minLength": 1},
          "css":        {"type": "string"},
          "stylesheet": {"type": "string"}
        },
        "anyOf": [{"required": ["html"]}, {"required": ["markup"]}]
      }
    }
  }
}`

var (
	blockSchema = mustCompile("block.json", blockSchemaJSON)
	pageSchema  = mustCompile("page.json", pageSchemaJSON)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}
