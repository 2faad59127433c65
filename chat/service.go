// Package chat is the department assistant: transcript persistence, data
// context and the call to the generation backend.
package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"intelplatform/metrics"
	"intelplatform/models"
	"intelplatform/store"
)

const errorPrefix = "⚠️ "

type Service struct {
	history *store.ChatHistory
	context *ContextSource
	gen     Generator
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// NewService wires the assistant. A nil gen behaves as if no API key was
// configured.
func NewService(history *store.ChatHistory, source *ContextSource, gen Generator, timeout time.Duration, log *zap.Logger) *Service {
	if gen == nil {
		gen = unavailable{err: ErrNoAPIKey}
	}
	return &Service{
		history: history,
		context: source,
		gen:     gen,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// Ask sends prompt with the stored transcript and the role's data context,
// stores both turns and returns the reply. Backend failures are returned as
// a placeholder reply, not as an error; only storage failures are errors.
func (s *Service) Ask(ctx context.Context, username, role, prompt string) (models.ChatMessage, error) {
	past, err := s.history.Load(ctx, username, role)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if _, err := s.history.Save(ctx, username, role, models.SenderUser, prompt, s.now()); err != nil {
		return models.ChatMessage{}, err
	}

	req := Request{
		System:  SystemInstruction(role, s.context.Build(ctx, role)),
		History: make([]Turn, 0, len(past)),
		Prompt:  prompt,
	}
	for _, m := range past {
		req.History = append(req.History, Turn{Role: m.MessageRole, Content: m.Content})
	}

	reply := s.generate(ctx, role, req)

	at := s.now()
	id, err := s.history.Save(ctx, username, role, models.SenderAssistant, reply, at)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return models.ChatMessage{
		ID:          id,
		Username:    username,
		Role:        role,
		MessageRole: models.SenderAssistant,
		Content:     reply,
		Timestamp:   at.Format(time.RFC3339Nano),
	}, nil
}

func (s *Service) generate(ctx context.Context, role string, req Request) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.gen.Generate(ctx, req)
	metrics.ChatLatency.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrNoAPIKey):
		metrics.ChatRequests.WithLabelValues(role, "no_key").Inc()
		return errorPrefix + "Error: " + err.Error()
	case err != nil:
		metrics.ChatRequests.WithLabelValues(role, "error").Inc()
		s.log.Warn("generation failed", zap.String("role", role), zap.Error(err))
		return errorPrefix + "AI Connection Error: " + err.Error()
	}
	metrics.ChatRequests.WithLabelValues(role, "ok").Inc()
	return reply
}

// History returns the stored transcript for username in role.
func (s *Service) History(ctx context.Context, username, role string) ([]models.ChatMessage, error) {
	return s.history.Load(ctx, username, role)
}

func (s *Service) Clear(ctx context.Context, username, role string) error {
	n, err := s.history.Clear(ctx, username, role)
	if err != nil {
		return err
	}
	s.log.Debug("chat history cleared", zap.String("username", username), zap.String("role", role), zap.Int64("messages", n))
	return nil
}
