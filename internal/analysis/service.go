package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/enclaro/backend/internal/claude"
	"github.com/enclaro/backend/internal/history"
	"github.com/enclaro/backend/internal/prompts"
)

// User-facing messages. The client application is Spanish-language.
const (
	msgPremiumOnly = "Esta función es exclusiva para usuarios Premium ⭐. Actualiza tu cuenta para acceder."
	msgAuthError   = "Error de autenticación: Verifica tu CLAUDE_API_KEY."
	msgRateLimited = "Límite de mensajes alcanzado. Por favor, espera un momento."
	msgGeneric     = "No se pudo analizar el contenido. Por favor, comprueba tu conexión o intenta más tarde."
)

// DefaultMaxInputLength bounds the request text. Sized for roleplay
// conversation histories.
const DefaultMaxInputLength = 15000

// historyLimit caps the history listing at the 50 most recent exchanges.
const historyLimit = 50

// Request is the inbound analysis request produced by the routing layer.
type Request struct {
	Text            string
	Module          string
	UserEmail       string
	UserProfile     map[string]any
	ScenarioContext map[string]any
}

// Composer produces the prompt pair for a module and request text.
type Composer interface {
	Compose(moduleID, text string, userProfile, scenarioContext map[string]any) (string, string, error)
}

// ModelClient invokes the upstream model with a composed prompt pair.
type ModelClient interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// HistoryStore persists users and their exchanges.
type HistoryStore interface {
	EnsureUser(ctx context.Context, email string, premium bool) error
	Append(ctx context.Context, rec history.Record) error
	ListByEmail(ctx context.Context, email string, limit int) ([]history.Record, error)
}

// Config configures the orchestrator.
type Config struct {
	MaxInputLength int
	PremiumUsers   []string
}

// Service orchestrates one analysis: validation, premium gate, prompt
// composition, model invocation, and best-effort history persistence.
type Service struct {
	composer       Composer
	client         ModelClient
	store          HistoryStore // nil disables persistence
	allowlist      map[string]bool
	maxInputLength int
}

// NewService wires the orchestrator. store may be nil when no database is
// configured; history persistence is then skipped entirely.
func NewService(cfg Config, composer Composer, client ModelClient, store HistoryStore) *Service {
	maxLen := cfg.MaxInputLength
	if maxLen <= 0 {
		maxLen = DefaultMaxInputLength
	}

	allowlist := make(map[string]bool, len(cfg.PremiumUsers))
	for _, email := range cfg.PremiumUsers {
		allowlist[email] = true
	}

	return &Service{
		composer:       composer,
		client:         client,
		store:          store,
		allowlist:      allowlist,
		maxInputLength: maxLen,
	}
}

// Analyze runs the linear pipeline: length gate, premium gate, compose,
// invoke, best-effort history append.
func (s *Service) Analyze(ctx context.Context, req Request) (string, error) {
	// The bound is in characters, not bytes; accented Spanish text must not
	// be penalized for its UTF-8 encoding.
	if utf8.RuneCountInString(req.Text) > s.maxInputLength {
		return "", NewError(KindInputTooLong,
			fmt.Sprintf("El texto es demasiado largo (máx %d caracteres).", s.maxInputLength), nil)
	}

	if err := s.checkPremiumGate(req); err != nil {
		return "", err
	}

	systemPrompt, userPrompt, err := s.composer.Compose(req.Module, req.Text, req.UserProfile, req.ScenarioContext)
	if err != nil {
		var unknownErr *prompts.UnknownModuleError
		if errors.As(err, &unknownErr) {
			return "", NewError(KindInvalidModule,
				fmt.Sprintf("Módulo no válido: %s", unknownErr.Name), err)
		}
		log.Error().Err(err).Str("module", req.Module).Msg("Prompt composition failed")
		return "", NewError(KindInternal, msgGeneric, err)
	}

	exchangeID := uuid.NewString()

	result, err := s.client.Invoke(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", s.classifyClientError(err, req.Module, exchangeID)
	}

	s.persistExchange(ctx, req, result, exchangeID)

	return result, nil
}

// History returns the user's exchanges, most recent first, capped at 50. An
// absent email yields an empty sequence rather than an error.
func (s *Service) History(ctx context.Context, email string) ([]history.Record, error) {
	if email == "" || s.store == nil {
		return []history.Record{}, nil
	}

	records, err := s.store.ListByEmail(ctx, email, historyLimit)
	if err != nil {
		return nil, NewError(KindInternal, msgGeneric, err)
	}
	return records, nil
}

// checkPremiumGate rejects premium-flagged roleplay scenarios for users
// outside the allowlist. Runs before any template work; gated requests never
// reach the model client.
//
// The premium flag is client-supplied in the scenario context. Known trust
// boundary weakness, preserved as shipped pending product input.
func (s *Service) checkPremiumGate(req Request) error {
	if req.Module != string(prompts.ModuleRoleplay) {
		return nil
	}

	isPremium, _ := req.ScenarioContext["is_premium"].(bool)
	if !isPremium {
		return nil
	}

	if req.UserEmail == "" || !s.allowlist[req.UserEmail] {
		return NewError(KindForbidden, msgPremiumOnly, nil)
	}
	return nil
}

// classifyClientError translates a model-client failure into the error
// taxonomy. Raw upstream detail stays in the logs, never in the user message.
func (s *Service) classifyClientError(err error, module, exchangeID string) error {
	log.Error().
		Err(err).
		Str("module", module).
		Str("exchange_id", exchangeID).
		Msg("Model invocation failed")

	if errors.Is(err, claude.ErrNoAPIKey) {
		return NewError(KindConfiguration, msgAuthError, err)
	}

	var apiErr *claude.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return NewError(KindAuthentication, msgAuthError, err)
		case http.StatusTooManyRequests:
			return NewError(KindRateLimited, msgRateLimited, err)
		}
	}

	return NewError(KindUpstream, msgGeneric, err)
}

// persistExchange appends a history row for a successful analysis. Any
// failure here is logged and swallowed; it never changes the response.
func (s *Service) persistExchange(ctx context.Context, req Request, result, exchangeID string) {
	if s.store == nil || req.UserEmail == "" {
		return
	}

	// The premium flag is computed from the allowlist only when the user row
	// is first created.
	if err := s.store.EnsureUser(ctx, req.UserEmail, s.allowlist[req.UserEmail]); err != nil {
		log.Warn().Err(err).Str("user_email", req.UserEmail).Msg("Failed to ensure user record")
		return
	}

	metadata := make(map[string]any, len(req.ScenarioContext)+1)
	for k, v := range req.ScenarioContext {
		metadata[k] = v
	}
	metadata["exchange_id"] = exchangeID

	rec := history.Record{
		UserEmail:  req.UserEmail,
		Module:     req.Module,
		InputText:  req.Text,
		ResultText: result,
		Metadata:   metadata,
	}

	if err := s.store.Append(ctx, rec); err != nil {
		log.Warn().
			Err(err).
			Str("user_email", req.UserEmail).
			Str("exchange_id", exchangeID).
			Msg("Failed to append history record")
	}
}
