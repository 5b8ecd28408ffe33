// internal/api/schemas.go
package api

// Request body schemas, validated with gojsonschema before binding. The
// search body must carry either an offer id or an explicit skill list.
var searchSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"offerId": map[string]interface{}{"type": "integer", "minimum": 1},
		"skills": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":  map[string]interface{}{"type": "string", "minLength": 1},
					"level": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 3},
				},
				"required": []interface{}{"name"},
			},
		},
		"filters": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"profamilyId": map[string]interface{}{"type": "integer", "minimum": 1},
				"grade":       map[string]interface{}{"type": "string"},
				"car":         map[string]interface{}{"type": "boolean"},
			},
		},
	},
	"anyOf": []interface{}{
		map[string]interface{}{"required": []interface{}{"offerId"}},
		map[string]interface{}{"required": []interface{}{"skills"}},
	},
}

var accessSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"fromIntelligentSearch": map[string]interface{}{"type": "boolean"},
	},
}

var purchaseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"amount": map[string]interface{}{"type": "integer", "minimum": 1},
	},
	"required": []interface{}{"amount"},
}
