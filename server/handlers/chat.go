// Package handlers provides the HTTP handlers for the ledgerchat relay.
//
// The chat handler is the core of the service. It runs an ordered pipeline
// of guard clauses per request: credential gate, body parse, message
// validation, prompt assembly, upstream relay. Each step either passes the
// request on or returns a tagged error that the dispatcher maps onto the
// wire; nothing is retried and no state survives the request.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apierrors "github.com/ledgerline/ledgerchat/errors"
	"github.com/ledgerline/ledgerchat/server/metrics"
	"github.com/ledgerline/ledgerchat/server/middleware"
	"github.com/ledgerline/ledgerchat/server/prompt"
	"github.com/ledgerline/ledgerchat/server/relay"
)

// Caller-facing failure text. The 502 wording hints at credential or quota
// problems in prose and never contains upstream response data.
const (
	unconfiguredReply = "The assistant isn't configured yet: the upstream API key is missing. " +
		"Please ask whoever runs this deployment to set it."
	upstreamFailureReply = "The assistant couldn't get an answer from its language model right now. " +
		"This is usually a credential or quota problem on the server side. Please try again later."
	transportFailureReply = "Something went wrong. Please try again."
	emptyCompletionReply  = "I didn't get a reply. Please try again."
)

// ChatRequest is the incoming request body. Decoding projects each message
// to role and content; any extra fields the caller sends are dropped.
type ChatRequest struct {
	Messages []relay.Message `json:"messages"`
	Context  string          `json:"context"`
}

// ChatResponse is the success body.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Relay is the outbound collaborator the handler depends on. It is an
// interface so tests can assert on the exact message sequence without a
// network.
type Relay interface {
	// Configured reports whether an upstream credential is present.
	Configured() bool

	// Complete performs one chat-completion call and returns the trimmed
	// content of the first choice, or "" when the upstream answered
	// without usable content.
	Complete(ctx context.Context, messages []relay.Message) (string, error)
}

// ChatHandler handles POST /v1/chat.
type ChatHandler struct {
	relay   Relay
	tokens  *prompt.TokenCounter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewChatHandler creates the chat handler. The metrics instance may be nil,
// which disables instrumentation (used by tests).
func NewChatHandler(r Relay, tokens *prompt.TokenCounter, m *metrics.Metrics, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		relay:   r,
		tokens:  tokens,
		metrics: m,
		logger:  logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Pre-flight and method gating normally happen in the middleware and
	// router; the guard here keeps the contract when the handler is
	// mounted directly.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		apierrors.Write(w, apierrors.NewMethodError())
		return
	}

	logger := h.logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
	)

	// Credential gate runs before the body is touched: an unconfigured
	// deployment fails fast and cheaply.
	if !h.relay.Configured() {
		logger.Warn("Chat request rejected: no upstream API key configured")
		apierrors.Write(w, apierrors.NewConfigError(unconfiguredReply))
		return
	}

	req, rerr := decodeChatRequest(r.Body)
	if rerr != nil {
		apierrors.Write(w, rerr)
		return
	}

	outbound := prompt.Build(req.Messages, req.Context)

	promptTokens := h.tokens.CountMessages(outbound)
	if h.metrics != nil {
		h.metrics.PromptTokens.Observe(float64(promptTokens))
	}
	logger.Debug("Relaying chat request",
		zap.Int("messages", len(outbound)),
		zap.Int("prompt_tokens_estimate", promptTokens),
		zap.Bool("has_context", req.Context != ""),
	)

	content, err := h.relay.Complete(r.Context(), outbound)
	if err != nil {
		var statusErr *relay.StatusError
		if errors.As(err, &statusErr) {
			// Status and body were already logged by the relay.
			if h.metrics != nil {
				h.metrics.ObserveUpstream(statusErr.Status, err)
			}
			apierrors.Write(w, apierrors.NewUpstreamError(upstreamFailureReply, err))
			return
		}

		logger.Error("Chat relay failed", zap.Error(err))
		if h.metrics != nil {
			h.metrics.ObserveUpstream(0, err)
		}
		apierrors.Write(w, apierrors.NewInternalError(transportFailureReply, err))
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveUpstream(0, nil)
	}

	if content == "" {
		content = emptyCompletionReply
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ChatResponse{Reply: content}); err != nil {
		logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

// decodeChatRequest parses the request body. The body is usually a JSON
// object, but callers occasionally double-encode it as a JSON string; both
// forms are accepted. A non-empty messages array is the only structural
// requirement.
func decodeChatRequest(body io.Reader) (*ChatRequest, *apierrors.RequestError) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apierrors.NewValidationError("Invalid JSON body")
	}

	data = bytes.TrimSpace(data)
	if strings.HasPrefix(string(data), `"`) {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, apierrors.NewValidationError("Invalid JSON body")
		}
		data = []byte(inner)
	}

	// Messages stays raw for one more step so that a present-but-non-array
	// value fails the shape check, not the JSON check.
	var envelope struct {
		Messages json.RawMessage `json:"messages"`
		Context  string          `json:"context"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apierrors.NewValidationError("Invalid JSON body")
	}

	req := &ChatRequest{Context: envelope.Context}
	if len(envelope.Messages) > 0 {
		if err := json.Unmarshal(envelope.Messages, &req.Messages); err != nil {
			return nil, apierrors.NewValidationError("messages array required")
		}
	}

	if len(req.Messages) == 0 {
		return nil, apierrors.NewValidationError("messages array required")
	}

	return req, nil
}
