package validation

var stringOrList = map[string]interface{}{
	"anyOf": []interface{}{
		map[string]interface{}{"type": "string"},
		map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
}

var levelFlag = map[string]interface{}{
	"type": []interface{}{"boolean", "number", "string"},
}

// PredictionRequest accepts the flat feature map served by /predict. Unknown
// keys are allowed and ignored downstream; absent columns score as 0, so an
// empty object is valid.
var PredictionRequest = MustCompile(map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"experience_required": map[string]interface{}{
			"type": []interface{}{"number", "string", "array"},
		},
		"Experience_Required": map[string]interface{}{
			"type": []interface{}{"number", "string", "array"},
		},
		"study_level_required":  map[string]interface{}{"type": "string"},
		"sector_activity":       stringOrList,
		"function":              stringOrList,
		"contract_type_offered": stringOrList,
		"Bac":                   levelFlag,
		"Bac +2":                levelFlag,
		"Bac +3":                levelFlag,
		"Bac +4":                levelFlag,
		"Bac +5":                levelFlag,
		"Doctorate":             levelFlag,
	},
	"additionalProperties": true,
})

// CrawlURLRequest is the body of a crawl-url registration.
var CrawlURLRequest = MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"url"},
	"properties": map[string]interface{}{
		"url": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
			"pattern":   "^https?://",
		},
	},
})
