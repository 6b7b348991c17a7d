package gemini

import (
	"context"
	"fmt"
	"time"

	"hotel-receptionist/internal/simulator"
	"hotel-receptionist/internal/tools"

	"google.golang.org/genai"
)

// Chat returns a simulator.ChatModel backed by GenerateContent.
func (c *Client) Chat() *ChatModel {
	return &ChatModel{client: c}
}

// ChatModel answers phone simulator turns.
type ChatModel struct {
	client *Client
}

// Generate sends the full conversation and returns the model's answer.
func (m *ChatModel) Generate(ctx context.Context, req simulator.ChatRequest) (simulator.ChatReply, error) {
	c := m.client
	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.opts.TextModel, Contents(req.Messages), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Tools:             req.Tools,
	})
	c.observe("text", err, time.Since(start))
	if err != nil {
		return simulator.ChatReply{}, fmt.Errorf("generate content: %w", err)
	}
	return Reply(resp), nil
}

// Contents converts a call history into model contents. Tool results travel
// as user-role function responses.
func Contents(messages []simulator.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case simulator.RoleUser:
			out = append(out, genai.NewContentFromText(msg.Text, genai.RoleUser))
		case simulator.RoleModel:
			content := &genai.Content{Role: string(genai.RoleModel)}
			if msg.Text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Text})
			}
			for _, call := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: call.Args,
				}})
			}
			if len(content.Parts) > 0 {
				out = append(out, content)
			}
		case simulator.RoleTool:
			content := &genai.Content{Role: string(genai.RoleUser)}
			for _, res := range msg.ToolResults {
				content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       res.ID,
					Name:     res.Name,
					Response: res.Response,
				}})
			}
			out = append(out, content)
		}
	}
	return out
}

// Reply extracts text and function calls from the first candidate.
func Reply(resp *genai.GenerateContentResponse) simulator.ChatReply {
	var reply simulator.ChatReply
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			reply.Text += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			reply.ToolCalls = append(reply.ToolCalls, tools.Call{ID: fc.ID, Name: fc.Name, Args: tools.Args(fc.Args)})
		}
	}
	return reply
}
