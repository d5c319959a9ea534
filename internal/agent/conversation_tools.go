package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/supportdesk/support-server-go/internal/config"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/knowledge"
	"github.com/supportdesk/support-server-go/internal/model"
)

const (
	msgMissingThreadID       = "Missing thread ID"
	msgConversationNotFound  = "Conversation not found"
	msgConversationEscalated = "Conversation escalated to a human operator"
	msgConversationResolved  = "Conversation resolved"
	searchInterpreterPrompt  = `You interpret knowledge base search results for a customer support agent.
Answer the user's question using only the search results. If they do not contain the answer,
say that you could not find it and offer to connect the user with a human operator.
Keep the answer short and friendly.`
)

// Conversations is the part of the conversation service the tools act on.
type Conversations interface {
	FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error)
	Escalate(ctx context.Context, conv *model.Conversation) (bool, error)
	Resolve(ctx context.Context, conv *model.Conversation) (bool, error)
	AddAssistantMessage(ctx context.Context, conv *model.Conversation, content string) (*model.Message, error)
	RecentMessages(ctx context.Context, threadID string, limit int) ([]model.Message, error)
}

// KnowledgeSearcher is satisfied by *knowledge.Searcher.
type KnowledgeSearcher interface {
	Search(ctx context.Context, namespace, query string, limit int) (*knowledge.Result, error)
}

// lookup resolves the thread to a conversation. A non-empty message means
// the tool should return it to the model as is.
func lookup(ctx context.Context, conversations Conversations, threadID string) (*model.Conversation, string, error) {
	if threadID == "" {
		return nil, msgMissingThreadID, nil
	}
	conv, err := conversations.FindByThreadID(ctx, threadID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeNotFound {
			return nil, msgConversationNotFound, nil
		}
		return nil, "", err
	}
	if conv == nil {
		return nil, msgConversationNotFound, nil
	}
	return conv, "", nil
}

type escalateTool struct {
	conversations Conversations
}

func NewEscalateTool(conversations Conversations) Tool {
	return &escalateTool{conversations: conversations}
}

func (t *escalateTool) Name() string        { return "escalateConversation" }
func (t *escalateTool) Description() string { return "Escalate a conversation to a human operator" }

func (t *escalateTool) Parameters() map[string]any { return emptyParameters() }

func (t *escalateTool) Call(ctx context.Context, call ToolCall) (string, error) {
	conv, msg, err := lookup(ctx, t.conversations, call.ThreadID)
	if msg != "" || err != nil {
		return msg, err
	}
	if _, err := t.conversations.Escalate(ctx, conv); err != nil {
		return "", err
	}
	return msgConversationEscalated, nil
}

type resolveTool struct {
	conversations Conversations
}

func NewResolveTool(conversations Conversations) Tool {
	return &resolveTool{conversations: conversations}
}

func (t *resolveTool) Name() string        { return "resolveConversation" }
func (t *resolveTool) Description() string { return "Resolve a conversation" }

func (t *resolveTool) Parameters() map[string]any { return emptyParameters() }

func (t *resolveTool) Call(ctx context.Context, call ToolCall) (string, error) {
	conv, msg, err := lookup(ctx, t.conversations, call.ThreadID)
	if msg != "" || err != nil {
		return msg, err
	}
	if _, err := t.conversations.Resolve(ctx, conv); err != nil {
		return "", err
	}
	return msgConversationResolved, nil
}

type searchArgs struct {
	Query string `json:"query"`
}

// searchTool looks up the organization's knowledge base and has the model
// condense the hits into an answer.
type searchTool struct {
	conversations Conversations
	searcher      KnowledgeSearcher
	model         llms.Model
}

func NewSearchTool(conversations Conversations, searcher KnowledgeSearcher, model llms.Model) Tool {
	return &searchTool{conversations: conversations, searcher: searcher, model: model}
}

func (t *searchTool) Name() string { return "searchKnowledge" }

func (t *searchTool) Description() string {
	return "Search the knowledge base for relevant information to help answer user questions"
}

func (t *searchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to find relevant information",
			},
		},
		"required": []string{"query"},
	}
}

func (t *searchTool) Call(ctx context.Context, call ToolCall) (string, error) {
	var args searchArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return "A search query is required", nil
	}

	conv, msg, err := lookup(ctx, t.conversations, call.ThreadID)
	if msg != "" || err != nil {
		return msg, err
	}

	result, err := t.searcher.Search(ctx, conv.OrganizationID, args.Query, config.KnowledgeSearchLimit)
	if err != nil {
		return "", err
	}

	contextText := fmt.Sprintf("Found results in %s. Here is the context:\n\n%s",
		strings.Join(result.Titles(), ", "), result.Text)

	resp, err := t.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, searchInterpreterPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("User asked %q\n\nSearch results: %s", args.Query, contextText)),
	})
	if err != nil {
		return "", fmt.Errorf("interpret search results: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Content, nil
}
