// Package orchestrator drives one completion round trip: record the user
// turn, call the provider, record the reply or a fixed apology.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"chatd/internal/chat"
	"chatd/internal/session"
	"chatd/internal/tokenizer"
)

// Apology is appended as the assistant turn whenever the provider call
// fails. Send never surfaces provider failures to its caller.
const Apology = "Sorry, I encountered an error. Please try again."

var (
	// ErrEmptyMessage reports user input that is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy reports a conversation that already has a completion in flight.
	ErrBusy = errors.New("conversation has a request in flight")
)

// CompletionGateway is the slice of the provider gateway Send needs.
type CompletionGateway interface {
	Complete(ctx context.Context, messages []chat.Message, model string) (chat.Message, error)
}

// Orchestrator owns the send flow. One completion may be in flight per
// conversation; concurrent sends to distinct conversations are fine.
type Orchestrator struct {
	sessions *session.Store
	gateway  CompletionGateway
	counter  *tokenizer.Tokenizer
	log      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New wires the orchestrator to the session store and gateway.
func New(sessions *session.Store, gateway CompletionGateway) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		gateway:  gateway,
		counter:  tokenizer.Default(),
		log:      slog.Default(),
		inFlight: make(map[string]struct{}),
	}
}

// Send runs one round trip against the conversation with the given id. The
// user turn is appended before the network call, so it survives any
// failure. The reply, or the apology on failure, lands in the conversation
// the request started from, even if the active selection moved meanwhile.
// If that conversation was deleted mid-flight the result is dropped.
func (o *Orchestrator) Send(ctx context.Context, id, userText, model string) (chat.Conversation, error) {
	if strings.TrimSpace(userText) == "" {
		return chat.Conversation{}, ErrEmptyMessage
	}

	if err := o.acquire(id); err != nil {
		return chat.Conversation{}, err
	}
	defer o.release(id)

	conv, ok := o.sessions.Get(id)
	if !ok {
		return chat.Conversation{}, chat.ErrNotFound
	}

	withUser := append(conv.Messages, chat.Message{Role: chat.RoleUser, Content: userText})
	if err := o.sessions.Append(id, withUser); err != nil {
		return chat.Conversation{}, err
	}

	o.log.Info("sending completion",
		"conversation", id,
		"messages", len(withUser),
		"prompt_tokens", o.counter.Count(withUser),
		"precise", o.counter.IsPrecise(),
	)

	reply, err := o.gateway.Complete(ctx, withUser, model)
	if err != nil {
		o.log.Warn("completion failed, recording apology", "conversation", id, "error", err)
		reply = chat.Message{Role: chat.RoleAssistant, Content: Apology}
	}

	withReply := append(withUser, reply)
	if err := o.sessions.Append(id, withReply); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			// 会话已被删除，丢弃结果 / Conversation deleted mid-flight, drop the result
			o.log.Info("conversation deleted during completion, dropping reply", "conversation", id)
			return chat.Conversation{}, chat.ErrNotFound
		}
		return chat.Conversation{}, err
	}

	updated, ok := o.sessions.Get(id)
	if !ok {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return updated, nil
}

// SendActive runs Send against the currently active conversation.
func (o *Orchestrator) SendActive(ctx context.Context, userText, model string) (chat.Conversation, error) {
	return o.Send(ctx, o.sessions.ActiveID(), userText, model)
}

func (o *Orchestrator) acquire(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[id]; busy {
		return ErrBusy
	}
	o.inFlight[id] = struct{}{}
	return nil
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, id)
}
