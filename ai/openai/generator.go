// Copyright 2025 Sableridge Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sableridge/pagerag/ai"
	"github.com/sableridge/pagerag/token"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	est         token.Estimator
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxAnswerTokens,
		est:         token.Heuristic{},
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new answer generator using the provided
// configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// GenerateAnswer asks the model to answer question using only contextText.
func (g *Generator) GenerateAnswer(ctx context.Context, question, contextText string) (ai.Answer, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(answerSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildUserPrompt(question, contextText)),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens))
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return ai.Answer{}, classifyErr(err)
	}

	if len(response.Choices) < 1 {
		return ai.Answer{}, ai.ErrEmptyAnswer
	}
	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		return ai.Answer{}, ai.ErrEmptyAnswer
	}

	tokens := totalTokens(response.Choices[0])
	if tokens == 0 {
		// Usage reporting is optional on local servers; estimate.
		tokens = g.est.Count(question) + g.est.Count(contextText) + g.est.Count(text)
	}

	g.logger.Debug("generated answer", "answerChars", len(text), "tokens", tokens)
	return ai.Answer{Text: text, TokenCount: tokens}, nil
}

// totalTokens pulls the usage total out of the generation metadata when
// the server reports one.
func totalTokens(choice *llms.ContentChoice) int {
	if choice.GenerationInfo == nil {
		return 0
	}
	for _, key := range []string{"TotalTokens", "total_tokens"} {
		if v, ok := choice.GenerationInfo[key]; ok {
			if n, ok := v.(int); ok {
				return n
			}
		}
	}
	return 0
}
