package identity

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"smart-supermarket/internal/apperr"
	"smart-supermarket/internal/capture"
	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/pkg/objectstore"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Intent string

const (
	IntentNewAccount Intent = "signup"
	IntentReturning  Intent = "login"
)

func ParseIntent(s string) (Intent, error) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentNewAccount:
		return IntentNewAccount, nil
	case IntentReturning:
		return IntentReturning, nil
	}
	return "", apperr.Validation("invalid user type %q, expected signup or login", s)
}

type Outcome string

const (
	OutcomeNewAccount Outcome = "NEW_ACCOUNT"
	OutcomeRecognized Outcome = "RECOGNIZED"
	OutcomeAmbiguous  Outcome = "AMBIGUOUS"
)

const transportFallback = "Failed to process the photo. Please try again."

// Result is the classified answer of the identity endpoint. Exactly one
// Outcome is set per submission.
type Result struct {
	Outcome  Outcome
	UserID   *int
	UserName string
	Mood     string
	Message  string
	PhotoURL string
}

// Err returns the AmbiguousIdentity error for an ambiguous result, nil otherwise.
func (r *Result) Err() error {
	if r == nil || r.Outcome != OutcomeAmbiguous {
		return nil
	}
	return apperr.New(apperr.KindAmbiguousIdentity, r.Message)
}

type IIdentityService interface {
	Submit(ctx context.Context, frame *capture.Frame, intent Intent, name string) (*Result, error)
}

type identityService struct {
	endpoint string
	store    objectstore.Store
	client   *resty.Client
	logger   logger.ILogger
}

func NewIdentityService(endpoint string, store objectstore.Store, timeout time.Duration, log logger.ILogger) IIdentityService {
	return &identityService{
		endpoint: endpoint,
		store:    store,
		client:   resty.New().SetTimeout(timeout),
		logger:   log,
	}
}

// ValidateSubmission checks the inputs that must hold before any capture or upload.
func ValidateSubmission(intent Intent, name string) error {
	switch intent {
	case IntentNewAccount:
		if strings.TrimSpace(name) == "" {
			return apperr.Validation("user name is required to sign up")
		}
	case IntentReturning:
	default:
		return apperr.Validation("invalid user type %q, expected signup or login", intent)
	}
	return nil
}

type uploadResponse struct {
	UserID   *int   `json:"userId"`
	UserName string `json:"userName"`
	Mood     string `json:"mood"`
	IsNew    bool   `json:"isNew"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

func (s *identityService) Submit(ctx context.Context, frame *capture.Frame, intent Intent, name string) (*Result, error) {
	if err := ValidateSubmission(intent, name); err != nil {
		return nil, err
	}
	if frame == nil || len(frame.Data) == 0 {
		return nil, apperr.Validation("a captured photo is required")
	}

	ctx, span := otel.Tracer("identity").Start(ctx, "identity.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("identity.intent", string(intent)))

	// 1. Object storage pass-through
	photoURL, err := s.store.Put(ctx, objectstore.PhotoKey(frame.MimeType), frame.Data, frame.MimeType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		s.logger.Error("Identity", "Photo upload failed", map[string]interface{}{"error": err.Error()})
		return nil, apperr.Transport(transportFallback, err)
	}

	// 2. Identity resolution
	fields := map[string]string{
		"user_type": string(intent),
		"photo":     photoURL,
	}
	if intent == IntentNewAccount {
		fields["user_name"] = strings.TrimSpace(name)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetMultipartFormData(fields).
		Post(s.endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity request failed")
		s.logger.Error("Identity", "Identity request failed", map[string]interface{}{"error": err.Error()})
		return nil, apperr.Transport(transportFallback, err)
	}

	var body uploadResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	if resp.IsError() {
		s.logger.Warn("Identity", "Identity endpoint rejected photo", map[string]interface{}{
			"status": resp.StatusCode(),
			"error":  body.Error,
		})
		span.SetStatus(codes.Error, resp.Status())
		return nil, apperr.Transport(firstNonEmpty(body.Error, transportFallback), nil)
	}
	if decodeErr != nil {
		span.RecordError(decodeErr)
		return nil, apperr.Transport(transportFallback, decodeErr)
	}

	result, err := classify(body)
	if err != nil {
		return nil, err
	}
	result.PhotoURL = photoURL

	span.SetAttributes(attribute.String("identity.outcome", string(result.Outcome)))
	s.logger.Info("Identity", "Identity resolved", map[string]interface{}{
		"intent":  intent,
		"outcome": result.Outcome,
	})
	return result, nil
}

// classify maps a 2xx payload onto exactly one outcome. A resolved user id
// wins over an accompanying greeting message; a message with no identity is
// the "no match" case.
func classify(body uploadResponse) (*Result, error) {
	switch {
	case body.IsNew:
		return &Result{
			Outcome:  OutcomeNewAccount,
			UserID:   body.UserID,
			UserName: body.UserName,
			Mood:     body.Mood,
			Message:  body.Message,
		}, nil
	case body.UserID != nil:
		return &Result{
			Outcome:  OutcomeRecognized,
			UserID:   body.UserID,
			UserName: body.UserName,
			Mood:     body.Mood,
			Message:  body.Message,
		}, nil
	case body.Message != "":
		return &Result{
			Outcome: OutcomeAmbiguous,
			Message: body.Message,
		}, nil
	}
	return nil, apperr.Transport("Unexpected response from identity service.", nil)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
