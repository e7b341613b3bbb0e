package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"lexflow-backend/models"

	"github.com/google/generative-ai-go/genai"
)

const (
	generationModel = "gemini-3-pro-preview"
	defaultMaxTurns = 6
	maxPromptLength = 30000
)

// ErrModelExhausted is returned when the model never produces a final answer
// within the turn budget
var ErrModelExhausted = errors.New("model produced no final answer within the turn budget")

// ToolDeclaration describes one capability exposed to the model
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]string // argument name -> description, all strings
}

// ToolDispatcher executes a model-requested tool call. Returning a
// *ToolBudgetExceededError aborts the whole attempt; any other error is
// reported back to the model, which may continue without the result.
type ToolDispatcher func(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error)

// ModelRequest is one language-model execution request
type ModelRequest struct {
	Instructions string
	Tools        []ToolDeclaration
	MaxTurns     int
	Dispatch     ToolDispatcher
}

// ModelClient is the language-model execution contract: a schema-conformant
// structured payload, or an error
type ModelClient interface {
	Execute(ctx context.Context, req ModelRequest) (*models.AnswerPayload, error)
}

// GeminiModelClient drives structured answer generation through the Gemini API
type GeminiModelClient struct {
	client *genai.Client
}

// NewGeminiModelClient wraps an initialized genai client
func NewGeminiModelClient(client *genai.Client) *GeminiModelClient {
	return &GeminiModelClient{client: client}
}

// answerSchema declares the structured-output contract for the answer payload
func answerSchema() *genai.Schema {
	citation := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"url":     {Type: genai.TypeString},
			"title":   {Type: genai.TypeString},
			"binding": {Type: genai.TypeBoolean},
			"note":    {Type: genai.TypeString},
		},
		Required: []string{"url", "title"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"issue":       {Type: genai.TypeString},
			"rules":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"application": {Type: genai.TypeString},
			"conclusion":  {Type: genai.TypeString},
			"citations":   {Type: genai.TypeArray, Items: citation},
			"risk": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"level":         {Type: genai.TypeString},
					"hitl_required": {Type: genai.TypeBoolean},
					"reasons":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
				Required: []string{"level", "hitl_required"},
			},
			"jurisdiction": {Type: genai.TypeString},
		},
		Required: []string{"issue", "rules", "application", "conclusion", "citations", "risk"},
	}
}

// Execute runs the bounded tool-calling conversation and parses the final
// structured payload
func (c *GeminiModelClient) Execute(ctx context.Context, req ModelRequest) (*models.AnswerPayload, error) {
	if c.client == nil {
		return nil, errors.New("gemini client not set")
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	model := c.client.GenerativeModel(generationModel)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"
	if len(req.Tools) == 0 {
		// Response schemas cannot be combined with tool declarations
		model.ResponseSchema = answerSchema()
	} else {
		model.Tools = buildTools(req.Tools)
	}

	prompt := req.Instructions
	if len(prompt) > maxPromptLength {
		log.Printf("Warning: Prompt too long (%d chars), truncating to %d chars", len(prompt), maxPromptLength)
		prompt = prompt[:maxPromptLength] + "\n\n[Contenu tronqué...]"
	}

	session := model.StartChat()
	var next genai.Part = genai.Text(prompt)

	for turn := 0; turn < maxTurns; turn++ {
		resp, err := session.SendMessage(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return nil, errors.New("model returned no candidates")
		}

		var text strings.Builder
		var call *genai.FunctionCall
		for _, part := range resp.Candidates[0].Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text.WriteString(string(p))
			case genai.FunctionCall:
				fc := p
				call = &fc
			}
		}

		if call != nil {
			if req.Dispatch == nil {
				return nil, fmt.Errorf("model requested tool %q but no dispatcher is set", call.Name)
			}
			result, err := req.Dispatch(ctx, call.Name, call.Args)
			var budgetErr *ToolBudgetExceededError
			if errors.As(err, &budgetErr) {
				return nil, err
			}
			if err != nil {
				result = map[string]interface{}{"error": err.Error()}
			}
			next = genai.FunctionResponse{Name: call.Name, Response: result}
			continue
		}

		if text.Len() > 0 {
			return parseAnswerPayload(text.String())
		}
	}

	return nil, ErrModelExhausted
}

func buildTools(declarations []ToolDeclaration) []*genai.Tool {
	fns := make([]*genai.FunctionDeclaration, 0, len(declarations))
	for _, decl := range declarations {
		properties := make(map[string]*genai.Schema, len(decl.Parameters))
		required := make([]string, 0, len(decl.Parameters))
		for name, description := range decl.Parameters {
			properties[name] = &genai.Schema{Type: genai.TypeString, Description: description}
			required = append(required, name)
		}
		fns = append(fns, &genai.FunctionDeclaration{
			Name:        decl.Name,
			Description: decl.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fns}}
}

// parseAnswerPayload decodes the model's final text into the structured
// payload, tolerating markdown code fences around the JSON
func parseAnswerPayload(text string) (*models.AnswerPayload, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var payload models.AnswerPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("model output is not a valid answer payload: %w", err)
	}
	return &payload, nil
}
