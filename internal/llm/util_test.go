package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"fenced with language tag", "```json\n{\"subject\": \"Hi\"}\n```", `{"subject": "Hi"}`},
		{"bare fence", "```\n{\"subject\": \"Hi\"}\n```", `{"subject": "Hi"}`},
		{"fence on the same line as the object", "```{\"subject\": \"Hi\"}```", `{"subject": "Hi"}`},
		{"plain object", `{"subject": "Hi"}`, `{"subject": "Hi"}`},
		{"preamble", "Here is the rewritten email:\n{\"subject\": \"Hi\", \"body\": \"Hello\"}", `{"subject": "Hi", "body": "Hello"}`},
		{"trailing chatter", "{\"subject\": \"Hi\"}\n\nLet me know if you need anything else!", `{"subject": "Hi"}`},
		{"braces and escaped quotes in strings", `{"body": "Use {name} and \"quotes\"}"} trailing`, `{"body": "Use {name} and \"quotes\"}"}`},
		{"nested objects", `{"draft": {"subject": "Hi"}, "ok": true} done`, `{"draft": {"subject": "Hi"}, "ok": true}`},
		{"unbalanced object is left alone", `{"subject": "Hi"`, `{"subject": "Hi"`},
		{"no object", "  sorry, I cannot help  ", "sorry, I cannot help"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a": "}"}`, extractJSONObject(`{"a": "}"} tail`))
	assert.Empty(t, extractJSONObject(`{"a": {"b": 1}`))
	assert.Empty(t, extractJSONObject("not json"))
}
