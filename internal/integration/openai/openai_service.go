// Package openai turns free-text bot messages into dashboard commands
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

// Commands the agent may pick. CommandGeneral means no command applies
// and UserMessage is the whole answer.
const (
	CommandMachines = "machines"
	CommandPing     = "ping"
	CommandShift    = "shift"
	CommandSynced   = "synced"
	CommandSide     = "side"
	CommandHistory  = "history"
	CommandGeneral  = "general"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string `json:"command_name" jsonschema:"enum=machines,enum=ping,enum=shift,enum=synced,enum=side,enum=history,enum=general" jsonschema_description:"The bot command to run, or general when none applies"`
	Machine     string `json:"machine" jsonschema_description:"Machine name from the list for ping and side, empty otherwise"`
	UserMessage string `json:"user_message" jsonschema_description:"A short message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, machines []string) (*AgentResponse, error)
}

type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
	log    logrus.FieldLogger
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// NewOpenAIService creates a service authenticated with apiKey
func NewOpenAIService(apiKey string, log logrus.FieldLogger) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	return &openAIServiceImpl{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		schema: GenerateSchema[AgentResponse](),
		log:    log,
	}, nil
}

// SystemPrompt instructs the agent about the commands and the known machines
func SystemPrompt(machines []string) string {
	return fmt.Sprintf(`You are the assistant of an underground mine operations bot. Operators write in Spanish or English.

Map the user's message to one of these commands:
- machines: list the machines
- ping: check that a machine answers on the network (needs machine)
- shift: current shift report (Cartir totals)
- synced: which machines received today's Cartir
- side: last side selected on a machine (needs machine)
- history: recent sync runs
- general: anything else

Known machines: %s

Rules:
- machine must be copied exactly from the known machines, or left empty if none matches.
- user_message is one short line in the user's language. For general it is the whole answer.

Output strictly in JSON.`, strings.Join(machines, ", "))
}

// ParseAgentResponse decodes the model output and normalizes the command
func ParseAgentResponse(content string) (*AgentResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("received empty response from OpenAI")
	}
	var resp AgentResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}
	resp.CommandName = strings.ToLower(strings.TrimSpace(resp.CommandName))
	resp.Machine = strings.TrimSpace(resp.Machine)
	return &resp, nil
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, machines []string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, machine and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(machines)),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Model: openai.ChatModelGPT4o,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, errors.New("received empty response from OpenAI")
	}

	content := chat.Choices[0].Message.Content
	resp, err := ParseAgentResponse(content)
	if err != nil {
		s.log.Errorf("Failed to parse OpenAI response: %v\nRaw response: %s", err, content)
		return nil, err
	}
	return resp, nil
}
