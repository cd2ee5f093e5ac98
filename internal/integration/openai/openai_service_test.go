package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/onemine/internal/logging"
)

func TestParseAgentResponse(t *testing.T) {
	resp, err := ParseAgentResponse(`{"command_name":" Ping ","machine":" LE001 ","user_message":"Probando LE001"}`)
	require.NoError(t, err)
	assert.Equal(t, CommandPing, resp.CommandName)
	assert.Equal(t, "LE001", resp.Machine)
	assert.Equal(t, "Probando LE001", resp.UserMessage)

	_, err = ParseAgentResponse("  ")
	assert.Error(t, err)

	_, err = ParseAgentResponse("not json")
	assert.Error(t, err)
}

func TestGenerateSchemaIsStrict(t *testing.T) {
	raw, err := json.Marshal(GenerateSchema[AgentResponse]())
	require.NoError(t, err)

	var schema struct {
		Properties           map[string]map[string]any `json:"properties"`
		Required             []string                  `json:"required"`
		AdditionalProperties *bool                     `json:"additionalProperties"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))

	assert.ElementsMatch(t, []string{"command_name", "machine", "user_message"}, schema.Required)
	require.NotNil(t, schema.AdditionalProperties)
	assert.False(t, *schema.AdditionalProperties)
	assert.Contains(t, schema.Properties["command_name"]["enum"], CommandGeneral)
}

func TestSystemPromptListsMachines(t *testing.T) {
	prompt := SystemPrompt([]string{"LE001", "LE002"})
	assert.Contains(t, prompt, "Known machines: LE001, LE002")
}

func TestNewOpenAIServiceRequiresKey(t *testing.T) {
	_, err := NewOpenAIService("", logging.Discard())
	assert.Error(t, err)

	svc, err := NewOpenAIService("sk-test", logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
