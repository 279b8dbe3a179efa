package file

// flowSchema is the JSON schema every flow definition file must satisfy
// before it is decoded. Validation failures surface the offending file
// instead of a decode panic deep in the engine.
const flowSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "namespace"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"namespace": {"type": "string", "minLength": 1},
		"tenant_id": {"type": "string"},
		"revision": {"type": "integer", "minimum": 0},
		"disabled": {"type": "boolean"},
		"labels": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["key"],
				"properties": {
					"key": {"type": "string", "minLength": 1},
					"value": {"type": "string"}
				}
			}
		},
		"triggers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string", "enum": ["flow", "schedule", "webhook", "polling"]},
					"disabled": {"type": "boolean"},
					"states": {"type": "array", "items": {"type": "string"}},
					"conditions": {"type": "array", "items": {"type": "object", "required": ["kind"]}},
					"preconditions": {
						"type": "object",
						"required": ["id", "flows"],
						"properties": {
							"id": {"type": "string", "minLength": 1},
							"flows": {
								"type": "array",
								"minItems": 1,
								"items": {
									"type": "object",
									"required": ["namespace", "flow_id"]
								}
							}
						}
					}
				}
			}
		}
	}
}`
