package recommendation

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"smart-supermarket/internal/apperr"
	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultCount      = 10
	transportFallback = "Failed to fetch recommendations. Please try again."
)

// Query is the validated parameter set of one /predict call.
type Query struct {
	Mood     string `validate:"required"`
	Count    int    `validate:"min=1"`
	UserID   *int
	AisleIDs []int `validate:"dive,min=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(Query)
		if len(q.AisleIDs) == 0 && q.UserID == nil {
			sl.ReportError(q.AisleIDs, "AisleIDs", "AisleIDs", "aisles_or_user", "")
		}
	}, Query{})
	return v
}

// BuildQuery reads user id and mood from the session. A non-positive count
// is rejected rather than defaulted; a blank mood counts as missing.
func BuildQuery(sess session.Session, aisleIDs []int, count int) (Query, error) {
	q := Query{
		Mood:     strings.TrimSpace(sess.DetectedMood),
		Count:    count,
		UserID:   sess.UserID,
		AisleIDs: aisleIDs,
	}
	if err := validate.Struct(q); err != nil {
		return Query{}, queryError(err)
	}
	return q, nil
}

func queryError(err error) error {
	var verrs validator.ValidationErrors
	errors.As(err, &verrs)
	for _, fe := range verrs {
		switch fe.Field() {
		case "Mood":
			return apperr.Validation("A detected mood is required for recommendations.")
		case "Count":
			return apperr.Validation("The number of recommendations must be at least 1.")
		case "AisleIDs":
			return apperr.Validation("Select at least one aisle or log in to get recommendations.")
		}
	}
	return apperr.Wrap(apperr.KindValidation, "Invalid recommendation request.", err)
}

// Params renders the query string. Empty aisle lists and a missing user id
// are left out.
func (q Query) Params() map[string]string {
	params := map[string]string{
		"mood": q.Mood,
		"N":    strconv.Itoa(q.Count),
	}
	if len(q.AisleIDs) > 0 {
		ids := make([]string, len(q.AisleIDs))
		for i, id := range q.AisleIDs {
			ids[i] = strconv.Itoa(id)
		}
		params["interested_aisles"] = strings.Join(ids, ",")
	}
	if q.UserID != nil {
		params["userId"] = strconv.Itoa(*q.UserID)
	}
	return params
}

type Product struct {
	ProductID           *int     `json:"product_id,omitempty"`
	ProductName         string   `json:"product_name"`
	Aisle               string   `json:"aisle"`
	Department          string   `json:"department"`
	ImageURL            *string  `json:"image_url,omitempty"`
	Price               *float64 `json:"price,omitempty"`
	DiscountPrice       *float64 `json:"discount_price,omitempty"`
	DaysUntilExpiration *int     `json:"days_until_expiration,omitempty"`
}

// OnSale reports whether a discount price below the list price is known.
func (p Product) OnSale() bool {
	return p.Price != nil && p.DiscountPrice != nil && *p.DiscountPrice < *p.Price
}

// Response holds the four recommendation sections. Sections are never nil.
type Response struct {
	Initial           []Product `json:"initial"`
	MoodRelated       []Product `json:"mood_related"`
	CloseToExpiration []Product `json:"close_to_expiration"`
	PurchaseHistory   []Product `json:"purchase_history"`
}

func (r *Response) Total() int {
	return len(r.Initial) + len(r.MoodRelated) + len(r.CloseToExpiration) + len(r.PurchaseHistory)
}

func (r *Response) Empty() bool {
	return r.Total() == 0
}

type predictResponse struct {
	Initial           []Product `json:"initial_recommendations"`
	MoodRelated       []Product `json:"mood_related_recommendations"`
	CloseToExpiration []Product `json:"close_to_exp_recommendations"`
	PurchaseHistory   []Product `json:"actual_purchased_products"`
	Error             string    `json:"error"`
}

func (p predictResponse) normalize() *Response {
	orEmpty := func(in []Product) []Product {
		if in == nil {
			return []Product{}
		}
		return in
	}
	return &Response{
		Initial:           orEmpty(p.Initial),
		MoodRelated:       orEmpty(p.MoodRelated),
		CloseToExpiration: orEmpty(p.CloseToExpiration),
		PurchaseHistory:   orEmpty(p.PurchaseHistory),
	}
}

type IRecommendationClient interface {
	Request(ctx context.Context, sess session.Session, aisleIDs []int, count int) (*Response, error)
}

type recommendationClient struct {
	endpoint string
	client   *resty.Client
	logger   logger.ILogger
}

func NewRecommendationClient(endpoint string, timeout time.Duration, log logger.ILogger) IRecommendationClient {
	return &recommendationClient{
		endpoint: endpoint,
		client:   resty.New().SetTimeout(timeout),
		logger:   log,
	}
}

func (c *recommendationClient) Request(ctx context.Context, sess session.Session, aisleIDs []int, count int) (*Response, error) {
	q, err := BuildQuery(sess, aisleIDs, count)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("recommendation").Start(ctx, "recommendation.Request")
	defer span.End()
	span.SetAttributes(
		attribute.String("recommendation.mood", q.Mood),
		attribute.Int("recommendation.count", q.Count),
		attribute.Int("recommendation.aisles", len(q.AisleIDs)),
		attribute.Bool("recommendation.known_user", q.UserID != nil),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(q.Params()).
		Post(c.endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "predict request failed")
		c.logger.Error("Recommendation", "Predict request failed", map[string]interface{}{"error": err.Error()})
		return nil, apperr.Transport(transportFallback, err)
	}

	var body predictResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		c.logger.Warn("Recommendation", "Recommender rejected request", map[string]interface{}{
			"status": resp.StatusCode(),
			"error":  body.Error,
		})
		msg := body.Error
		if msg == "" {
			msg = transportFallback
		}
		return nil, apperr.Transport(msg, nil)
	}
	if decodeErr != nil {
		span.RecordError(decodeErr)
		return nil, apperr.Transport(transportFallback, decodeErr)
	}

	out := body.normalize()
	span.SetAttributes(attribute.Int("recommendation.total", out.Total()))
	if out.Empty() {
		c.logger.Info("Recommendation", "Recommender returned no products", map[string]interface{}{"mood": q.Mood})
		return nil, apperr.New(apperr.KindEmptyResult, "No recommendations are available right now.")
	}

	c.logger.Info("Recommendation", "Recommendations received", map[string]interface{}{
		"initial":          len(out.Initial),
		"mood_related":     len(out.MoodRelated),
		"close_to_exp":     len(out.CloseToExpiration),
		"purchase_history": len(out.PurchaseHistory),
	})
	return out, nil
}
