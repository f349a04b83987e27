// Package providers implements the Reviewer interface for each supported LLM
// provider.
//
// Supported providers: OpenAI (GPT), Anthropic (Claude), Google (Gemini), and
// Ollama / LMStudio for local models.
//
// A Review call makes exactly one HTTP attempt. Failures are typed so that
// [Classify] can sort them into transient, fatal and canceled; [Retry]
// applies an exponential backoff [Policy] on top. Credentials arrive through
// [Options] from the caller and are held only by the provider value.
//
// Use [New] to obtain a Reviewer by provider name and model string.
package providers
