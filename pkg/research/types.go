package research

// Config holds runtime configuration for the research workflow.
type Config struct {
	LLMApiKey    string
	SerperApiKey string
	MaxSources   int
}
