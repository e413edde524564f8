package ai

import (
	"strings"
)

const promptTemplate = `Answer the questions based on the provided context only.
Please provide the most accurate response based on the question.
<context>
%CONTEXT%
</context>
Question: %QUESTION%`

// BuildPrompt renders the grounded-answer prompt. Contexts are joined with a
// blank line between them, in the order given.
func BuildPrompt(question string, contexts []string) string {
	r := strings.NewReplacer(
		"%CONTEXT%", strings.Join(contexts, "\n\n"),
		"%QUESTION%", strings.TrimSpace(question),
	)
	return r.Replace(promptTemplate)
}

var compositionTemplates = map[string]string{
	"essay": "Write me an essay about %TOPIC% with 100 words",
	"poem":  "Write me a poem about %TOPIC% with 100 words",
}

// BuildCompositionPrompt renders the topic prompt for kind. The second
// result is false when kind has no template.
func BuildCompositionPrompt(kind, topic string) (string, bool) {
	tmpl, ok := compositionTemplates[kind]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(tmpl, "%TOPIC%", strings.TrimSpace(topic)), true
}
