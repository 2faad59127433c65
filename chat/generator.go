package chat

import (
	"context"
	"errors"
)

// ErrNoAPIKey means the generation backend has no credentials configured.
var ErrNoAPIKey = errors.New("GOOGLE_API_KEY is missing in secrets.toml")

// Turn is one prior message of the conversation. Role is "user" or
// "assistant".
type Turn struct {
	Role    string
	Content string
}

type Request struct {
	System  string
	History []Turn
	Prompt  string
}

// Generator produces the assistant's reply to a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// unavailable stands in when no backend could be configured.
type unavailable struct{ err error }

func (u unavailable) Generate(context.Context, Request) (string, error) { return "", u.err }
