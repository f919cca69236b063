package model

// Info describes one catalog entry: the short alias clients select by and
// the provider-qualified model identifier behind it.
type Info struct {
	Alias       string `json:"alias"`
	ProviderID  string `json:"provider_id"`
	DisplayName string `json:"display_name"`
}

// DefaultAlias is used when a session does not name a model.
const DefaultAlias = "llama"

// catalog maps client-facing aliases to provider model strings.
var catalog = map[string]Info{
	"nemotron": {
		Alias:       "nemotron",
		ProviderID:  "nvidia/llama-3.3-nemotron-super-49b-v1.5",
		DisplayName: "Nemotron (NVIDIA)",
	},
	"llama": {
		Alias:       "llama",
		ProviderID:  "meta/llama-3.3-70b-instruct",
		DisplayName: "Llama 3.3 (Meta)",
	},
	"deepseek": {
		Alias:       "deepseek",
		ProviderID:  "deepseek-ai/deepseek-r1-0528",
		DisplayName: "DeepSeek R1 (DeepSeek)",
	},
	"claude": {
		Alias:       "claude",
		ProviderID:  "meta/llama-3.3-70b-instruct", // fallback until an Anthropic key is configured
		DisplayName: "Claude-style (Anthropic fallback)",
	},
}

// Resolve returns the catalog entry for alias, falling back to the default
// model for unknown aliases.
func Resolve(alias string) Info {
	if info, ok := catalog[alias]; ok {
		return info
	}
	return catalog[DefaultAlias]
}

// Catalog returns all known models.
func Catalog() []Info {
	out := make([]Info, 0, len(catalog))
	for _, alias := range []string{"nemotron", "llama", "deepseek", "claude"} {
		out = append(out, catalog[alias])
	}
	return out
}
