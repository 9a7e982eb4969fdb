// Package llm is the text generation collaborator used by the critic and
// refiner agents.
//
// Providers wrap the Anthropic, OpenAI and Gemini SDKs, plus any endpoint that
// speaks the OpenAI chat completions protocol (Groq, Mistral, OpenRouter,
// Ollama, LMStudio). NewProvider picks one from a ProviderConfig, inferring
// the provider from the model name when it is left blank:
//
//	p, err := llm.NewProvider(llm.ProviderConfig{
//	    Model:     "llama-3.3-70b-versatile",
//	    Provider:  "groq",
//	    APIKey:    key,
//	    MaxTokens: 2048,
//	})
//	text, err := llm.Generate(ctx, p, prompt, llm.WithTemperature(0.2))
//
// Every call is a single user turn (a Prompt), optionally with a system
// instruction; no agent keeps a conversation.
//
// Rate limits and 5xx answers are retried with exponential backoff. Billing
// and quota errors fail immediately.
package llm
