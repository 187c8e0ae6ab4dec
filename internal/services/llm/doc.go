// Package llm is a chat-completions client for OpenAI-compatible gateways
// such as OpenRouter. dubline uses it for the translation stage.
//
// CompleteJSON sends system and user prompts in JSON mode and returns the
// raw content. BuildTranslationPrompt renders the dubbing prompt and
// DecodeLLMJSON decodes answers, tolerating code fences and surrounding
// prose.
//
// The client retries 408, 429 and 5xx responses, empty content and network
// timeouts with capped exponential backoff, honouring Retry-After. Final
// errors are tagged with services markers (ErrQuota, ErrTransport,
// ErrInvalidResponse, ErrConfiguration) so callers can classify them.
package llm
