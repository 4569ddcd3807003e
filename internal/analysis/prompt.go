package analysis

import "fmt"

// historyWindow caps how many prior turns are replayed in Ask.
const historyWindow = 10

// analysisSystemPrompt pins the assistant to JSON-only output. The response
// shape is repeated in the user prompt so a single instruction drift is less
// likely to break the contract.
const analysisSystemPrompt = `You are an assistant that analyzes student progress documents (IEPs, progress reports, evaluations). You respond with a single JSON object and nothing else: no prose, no markdown fences, no commentary.`

const askSystemPrompt = `You are a helpful assistant answering questions about a student's progress document. Answer in plain language a parent can understand. Base every answer on the document content provided; say so plainly when the document does not contain the answer.`

// buildAnalysisPrompt produces the deterministic instruction prompt: the
// exact JSON shape, the JSON-only instruction, and the document text
// verbatim.
func buildAnalysisPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following student document and respond with ONLY this JSON object, no surrounding text:

{
  "summary": "2-3 sentence overview of the document",
  "overallScore": 0,
  "strengths": ["..."],
  "concerns": ["..."],
  "recommendations": ["..."],
  "goals": [{"area": "...", "description": "...", "status": "onTrack|needsAttention|behind", "progressPercent": 0}],
  "services": [{"name": "...", "frequency": "...", "provider": "..."}]
}

Rules:
- "overallScore" is an integer 0-100 reflecting overall progress.
- "status" must be exactly one of: onTrack, needsAttention, behind.
- "progressPercent" is an integer 0-100.
- Use empty arrays for sections the document does not cover.

Document:
%s`, text)
}

// Turn is one prior exchange in the conversational follow-up mode.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// buildAskMessages assembles [system, document context, last historyWindow
// turns, question] for the free-text question-answering mode.
func buildAskMessages(question, documentText string, history []Turn) []message {
	msgs := make([]message, 0, len(history)+3)
	msgs = append(msgs, message{Role: "system", Content: askSystemPrompt})
	msgs = append(msgs, message{
		Role:    "user",
		Content: "Here is the student's document for context:\n\n" + documentText,
	})

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, t := range history {
		role := t.Role
		if role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, message{Role: role, Content: t.Content})
	}

	return append(msgs, message{Role: "user", Content: question})
}
