package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model  openai.ChatModel
	client *openai.Client
}

const (
	defaultChatTimeout     = 60 * time.Second
	defaultChatTemperature = 0.2
	languageFooter         = "End your reply with a final line of the form \"Language: <ISO 639-1 code of your reply>\"."
)

// NewOpenAIClient builds a client with defaults against api.openai.com.
func NewOpenAIClient(apiKey string, model openai.ChatModel) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		model:  model,
		client: &cli,
	}, nil
}

func (c *OpenAIClient) Summarize(ctx context.Context, text string, opts Options) (Reply, error) {
	system := "You are a concise assistant. Summarize the document in a short paragraph followed by its key points as bullet points. " +
		languageInstruction(opts.AllowNonEnglish) + " " + languageFooter
	content, err := c.complete(ctx, system, text, opts)
	if err != nil {
		return Reply{}, err
	}
	body, lang := splitLanguage(content)
	return Reply{Text: body, Language: lang}, nil
}

func (c *OpenAIClient) Answer(ctx context.Context, question, contextText string, opts Options) (Reply, error) {
	system := "You answer questions concisely based only on the provided context. If the context does not contain the answer, say so. " +
		languageInstruction(opts.AllowNonEnglish) + " " + languageFooter
	content, err := c.complete(ctx, system, fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question), opts)
	if err != nil {
		return Reply{}, err
	}
	body, lang := splitLanguage(content)
	return Reply{Text: body, Language: lang}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string, opts Options) (string, error) {
	return c.complete(ctx, system, prompt, opts)
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, opts Options) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultChatTimeout)
	defer cancel()

	model := c.model
	if opts.Model != "" {
		model = openai.ChatModel(opts.Model)
	}
	temperature := defaultChatTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    buildMessages(system, user),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}
