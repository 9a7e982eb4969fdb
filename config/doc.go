// Package config loads refinery.toml, the settings shared by the registry,
// the agents and the CLI.
//
//	[registry]
//	url = "http://localhost:8000"
//
//	[pipeline]
//	max_iterations = 2
//	score_threshold = 9
//	hop_timeout = "60s"
//
//	[llm]
//	provider = "groq"
//	model = "llama-3.3-70b-versatile"
//
// REGISTRY_URL, REFINERY_LISTEN, REFINERY_PUBLIC_URL and
// REFINERY_LOG_LEVEL override the file. API keys never live here; see the
// credentials package.
package config
