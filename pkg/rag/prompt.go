package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/hrdesk/pkg/vector"
)

const systemPrompt = `You are the HR help desk assistant for this organization.
Answer the employee's question using only the numbered passages in the context.
Do not use outside knowledge and do not guess. Keep answers short and factual, and
mention the source file when it helps.
If the passages do not answer the question, reply with exactly this sentence and nothing else:
%s`

// SystemPrompt is the instruction given with every question.
func SystemPrompt() string {
	return fmt.Sprintf(systemPrompt, NoInformationAnswer)
}

// BuildContext packs passages, most similar first, into at most maxChars
// characters (runes) of context. The first passage is always included, truncated if
// needed. It returns the context and the citations for the passages used.
func BuildContext(results []vector.Result, maxChars int) (string, []Citation) {
	var (
		b         strings.Builder
		used      int
		citations []Citation
		seen      = map[string]bool{}
	)

	for i, r := range results {
		header := fmt.Sprintf("[%d] %s\n", i+1, r.Metadata.Filename)
		text := strings.TrimSpace(r.Text)
		block := header + text + "\n\n"

		if used+utf8.RuneCountInString(block) > maxChars {
			if i > 0 {
				break
			}
			room := max(maxChars-utf8.RuneCountInString(header)-2, 0)
			block = header + truncate(text, room) + "\n\n"
		}

		b.WriteString(block)
		used += utf8.RuneCountInString(block)
		if !seen[r.DocumentID] {
			seen[r.DocumentID] = true
			citations = append(citations, Citation{DocumentID: r.DocumentID, Filename: r.Metadata.Filename})
		}
	}

	return strings.TrimSpace(b.String()), citations
}

// UserPrompt combines the context and the question into the user turn.
func UserPrompt(context, question string) string {
	return "Context:\n" + context + "\n\nQuestion: " + strings.TrimSpace(question)
}

// IsNoInformation reports whether a model reply is the insufficient
// information sentence, allowing for surrounding whitespace and quoting.
func IsNoInformation(reply string) bool {
	norm := strings.ToLower(strings.Trim(strings.TrimSpace(reply), `"'`))
	return strings.Contains(norm, strings.ToLower(strings.TrimSuffix(NoInformationAnswer, ".")))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
