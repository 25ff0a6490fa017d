package answer

import "strings"

// NotFoundAnswer is returned when retrieval finds no context.
const NotFoundAnswer = "I could not find any relevant information in the textbooks for this question. " +
	"Please add more textbooks or rebuild the index."

// SystemInstructions constrain the generator to the retrieved context.
const SystemInstructions = "You are a helpful educational tutor. " +
	"Answer the student's question using ONLY the information in the CONTEXT from the textbooks. " +
	"If the answer cannot be found in the context, explicitly say that the textbooks do not provide the answer. " +
	"Keep explanations clear and suitable for secondary school students."

// BuildPrompt lays out the grounded prompt sections in the order the
// generator expects: system, context, question, then the answer cue.
func BuildPrompt(system, question, context string) string {
	var b strings.Builder
	b.Grow(len(system) + len(question) + len(context) + 48)
	b.WriteString("[SYSTEM]\n")
	b.WriteString(system)
	b.WriteString("\n\n[CONTEXT]\n")
	b.WriteString(context)
	b.WriteString("\n\n[QUESTION]\n")
	b.WriteString(question)
	b.WriteString("\n\n[ANSWER]")
	return b.String()
}
