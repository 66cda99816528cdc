package generation

import "context"

// SelfTestPrompt is a cheap prompt that proves the provider answers.
const SelfTestPrompt = "Explain 'Recursion' to a 5-year-old in one funny sentence."

// SelfTest runs SelfTestPrompt against g.
func SelfTest(ctx context.Context, g Generator) (string, error) {
	return g.Generate(ctx, Request{Prompt: SelfTestPrompt})
}
