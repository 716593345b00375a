package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Turn is one line of conversation history as it appears inside a prompt.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

var sanitizer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Sanitize escapes backslash, double quote, newline, carriage return and tab
// so user text can sit inside a quoted line of a prompt without breaking it.
// Backslashes are handled in the same pass, so escapes introduced here are never escaped twice.
func Sanitize(s string) string {
	return sanitizer.Replace(s)
}

// SanitizeHistory returns a copy of history with every turn's sender and text sanitized.
func SanitizeHistory(history []Turn) []Turn {
	out := make([]Turn, len(history))
	for i, t := range history {
		out[i] = Turn{Sender: Sanitize(t.Sender), Text: Sanitize(t.Text)}
	}
	return out
}

type rewriteData struct {
	HistoryText string
	Query       string
}

type answerData struct {
	IsFirstMessage bool
	ActionList     string
	ConfidenceList string
	HistoryJSON    string
	Context        string
	Query          string
}

// RenderRewrite builds the search-query rewrite prompt from raw history and query.
func (p *Profile) RenderRewrite(history []Turn, query string) (string, error) {
	lines := make([]string, len(history))
	for i, t := range SanitizeHistory(history) {
		lines[i] = t.Sender + ": " + t.Text
	}

	var buf bytes.Buffer
	if err := p.rewrite.Execute(&buf, rewriteData{
		HistoryText: strings.Join(lines, "\n"),
		Query:       Sanitize(query),
	}); err != nil {
		return "", fmt.Errorf("failed to execute rewrite template: %w", err)
	}
	return buf.String(), nil
}

// RenderAnswer builds the answer-generation prompt from raw history, retrieved context and query.
func (p *Profile) RenderAnswer(history []Turn, contextText, query string) (string, error) {
	historyJSON, err := marshalHistory(SanitizeHistory(history))
	if err != nil {
		return "", fmt.Errorf("failed to marshal history for answer prompt: %w", err)
	}

	quoted := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		quoted[i] = "'" + a + "'"
	}

	var buf bytes.Buffer
	if err := p.answer.Execute(&buf, answerData{
		IsFirstMessage: len(history) == 0,
		ActionList:     strings.Join(quoted, ", "),
		ConfidenceList: `"` + strings.Join(p.ConfidenceLabels, `", "`) + `"`,
		HistoryJSON:    historyJSON,
		Context:        Sanitize(contextText),
		Query:          Sanitize(query),
	}); err != nil {
		return "", fmt.Errorf("failed to execute answer template: %w", err)
	}
	return buf.String(), nil
}

// marshalHistory encodes history without HTML escaping so characters like & and < reach the model as typed.
func marshalHistory(history []Turn) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(history); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
