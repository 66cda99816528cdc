package chat

import (
	"strings"

	"github.com/fyrsmithlabs/reporover/internal/retrieval"
)

const (
	contextStart = "--- CODE CONTEXT START ---"
	contextEnd   = "--- CODE CONTEXT END ---"
	entrySep     = "\n---\n"
)

const systemPrompt = `You are an expert AI Developer Assistant named 'RepoRover'.
Use the following Code Context to answer the user's question accurately.
If the answer is not in the context, say "I don't have enough info in the code context."
Be technical and concise.`

// buildContext joins chunks as FILE/CODE entries. Whole entries past
// maxBytes are dropped; the first entry is always kept.
func buildContext(chunks []retrieval.RetrievedChunk, maxBytes int) (string, int) {
	var b strings.Builder
	used := 0
	for _, c := range chunks {
		entry := "FILE: " + c.Path + "\nCODE:\n" + c.Content + "\n"
		extra := len(entry)
		if used > 0 {
			extra += len(entrySep)
		}
		if used > 0 && maxBytes > 0 && b.Len()+extra > maxBytes {
			break
		}
		if used > 0 {
			b.WriteString(entrySep)
		}
		b.WriteString(entry)
		used++
	}
	return b.String(), used
}

func buildPrompt(question, contextText string) string {
	var b strings.Builder
	b.WriteString("USER QUESTION: \"")
	b.WriteString(question)
	b.WriteString("\"\n\n")
	b.WriteString(contextStart)
	b.WriteString("\n")
	b.WriteString(contextText)
	b.WriteString("\n")
	b.WriteString(contextEnd)
	b.WriteString("\n\nYour Answer (Be technical and concise):")
	return b.String()
}

// sources lists distinct paths in rank order.
func sources(chunks []retrieval.RetrievedChunk) []string {
	seen := make(map[string]bool, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if !seen[c.Path] {
			seen[c.Path] = true
			out = append(out, c.Path)
		}
	}
	return out
}
