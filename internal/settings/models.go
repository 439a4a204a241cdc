package settings

// Model describes a selectable Gemini model.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultModelID is used when no model is selected or the selection is unknown.
const DefaultModelID = "gemini-2.0-flash-lite"

var registry = []Model{
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Fast and efficient model for most tasks"},
	{ID: "gemini-2.5-flash-lite-preview-06-17", Name: "Gemini 2.5 Flash Lite", Description: "Lightweight preview model with lower latency"},
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Description: "Previous generation fast model"},
	{ID: DefaultModelID, Name: "Gemini 2.0 Flash Lite", Description: "Cost-efficient model, recommended default"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Most capable model for complex reasoning"},
}

// Models returns the known models.
func Models() []Model {
	return append([]Model(nil), registry...)
}

// LookupModel finds a model by id.
func LookupModel(id string) (Model, bool) {
	for _, m := range registry {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

func defaultModel() Model {
	m, _ := LookupModel(DefaultModelID)
	return m
}
