package loam

// TemplateMetadata is the front matter of a template document.
//
// Services and questions stay loosely typed here: services are converted
// through their JSON form into the flow tree, questions are decoded with the
// field decoder so that snake_case keys from hand-written YAML are accepted.
type TemplateMetadata struct {
	ID           string           `json:"id" mapstructure:"id"`
	Name         string           `json:"name" mapstructure:"name"`
	Description  string           `json:"description" mapstructure:"description"`
	Tags         []string         `json:"tags" mapstructure:"tags"`
	Theme        string           `json:"theme" mapstructure:"theme"`
	PrimaryColor string           `json:"primary_color" mapstructure:"primary_color"`
	Services     []map[string]any `json:"services" mapstructure:"services"`
	Questions    []map[string]any `json:"questions" mapstructure:"questions"`
}
