package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/supportdesk/support-server-go/internal/config"
	"github.com/supportdesk/support-server-go/internal/model"
)

const instructions = "You are a customer support agent."

// NewAnthropicModel builds the chat model used by the agent.
func NewAnthropicModel(apiKey, modelName string) (llms.Model, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key required")
	}
	llm, err := anthropic.New(
		anthropic.WithToken(apiKey),
		anthropic.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return llm, nil
}

// SupportAgent writes the assistant reply to the newest customer message.
type SupportAgent struct {
	model         llms.Model
	tools         *Registry
	conversations Conversations
	maxRounds     int
	historyLimit  int
}

func NewSupportAgent(model llms.Model, tools *Registry, conversations Conversations) *SupportAgent {
	return &SupportAgent{
		model:         model,
		tools:         tools,
		conversations: conversations,
		maxRounds:     config.AgentMaxToolRounds,
		historyLimit:  config.ConversationHistoryMax,
	}
}

// Reply runs the model over the thread history, executing tool calls until
// the model answers in text or the round budget is spent. A non-empty answer
// is saved as an assistant message.
func (a *SupportAgent) Reply(ctx context.Context, conv *model.Conversation) error {
	history, err := a.conversations.RecentMessages(ctx, conv.ThreadID, a.historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	messages := buildPrompt(history)
	if len(messages) == 1 {
		log.Debug().Str("conversationId", conv.ID).Msg("no customer message to answer")
		return nil
	}

	definitions := a.tools.Definitions()
	for round := 0; ; round++ {
		opts := []llms.CallOption{}
		// the last round is text only so the loop always ends with an answer
		if round < a.maxRounds && len(definitions) > 0 {
			opts = append(opts, llms.WithTools(definitions))
		}

		resp, err := a.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return fmt.Errorf("generate reply: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no response choices")
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 || round >= a.maxRounds {
			return a.save(ctx, conv, choice.Content)
		}

		messages = append(messages, a.runTools(ctx, conv, choice.ToolCalls)...)
	}
}

func (a *SupportAgent) runTools(ctx context.Context, conv *model.Conversation, calls []llms.ToolCall) []llms.MessageContent {
	request := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	responses := make([]llms.MessageContent, 0, len(calls))

	for _, call := range calls {
		if call.FunctionCall == nil {
			continue
		}
		request.Parts = append(request.Parts, call)

		name := call.FunctionCall.Name
		result := a.tools.Dispatch(ctx, name, ToolCall{
			ThreadID:  conv.ThreadID,
			Arguments: []byte(call.FunctionCall.Arguments),
		})
		log.Info().
			Str("conversationId", conv.ID).
			Str("tool", name).
			Msg("agent tool call")

		responses = append(responses, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    result,
			}},
		})
	}

	return append([]llms.MessageContent{request}, responses...)
}

func (a *SupportAgent) save(ctx context.Context, conv *model.Conversation, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if _, err := a.conversations.AddAssistantMessage(ctx, conv, content); err != nil {
		return fmt.Errorf("save reply: %w", err)
	}
	return nil
}

// buildPrompt maps the thread onto chat messages after the system
// instructions. Leading assistant messages such as the greeting are dropped
// since the conversation must open with the customer.
func buildPrompt(history []model.Message) []llms.MessageContent {
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, instructions)}
	for _, msg := range history {
		switch msg.Role {
		case model.RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case model.RoleAssistant:
			if len(messages) == 1 {
				continue
			}
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		}
	}
	return messages
}
