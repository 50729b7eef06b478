// FILE: internal/dto/journey_dto.go
package dto

type IdentifyRequest struct {
	UserType string `json:"user_type" form:"user_type" validate:"required,oneof=signup login"`
	UserName string `json:"user_name" form:"user_name" validate:"omitempty,max=100"`
}

type ToggleAisleRequest struct {
	Aisle string `json:"aisle" validate:"required"`
}

type RecommendationRequest struct {
	N *int `json:"n" query:"n" validate:"omitempty,min=1,max=100"`
}

type SessionResponse struct {
	UserID       *int   `json:"user_id"`
	UserName     string `json:"user_name"`
	DetectedMood string `json:"detected_mood"`
	IsLoggedIn   bool   `json:"is_logged_in"`
}

type CameraResponse struct {
	State        string `json:"state"`
	PreviewReady bool   `json:"preview_ready"`
}

type JourneyResponse struct {
	JourneyID          string          `json:"journey_id"`
	State              string          `json:"state"`
	Session            SessionResponse `json:"session"`
	Camera             CameraResponse  `json:"camera"`
	Message            string          `json:"message,omitempty"`
	Selected           []string        `json:"selected"`
	HasRecommendations bool            `json:"has_recommendations"`
	Busy               bool            `json:"busy"`
}

type IdentifyResponse struct {
	Outcome  string `json:"outcome"`
	UserID   *int   `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Mood     string `json:"mood,omitempty"`
	Message  string `json:"message,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

type AisleResponse struct {
	AisleID        int    `json:"aisle_id"`
	Aisle          string `json:"aisle"`
	DisplayName    string `json:"display_name"`
	TotalPurchases int    `json:"total_purchases"`
	Selected       bool   `json:"selected"`
}

type DepartmentResponse struct {
	Department  string          `json:"department"`
	DisplayName string          `json:"display_name"`
	Aisles      []AisleResponse `json:"aisles"`
}

type SurveyResponse struct {
	Departments []DepartmentResponse `json:"departments"`
	Selected    []string             `json:"selected"`
}

type ToggleAisleResponse struct {
	Aisle     string   `json:"aisle"`
	Selected  bool     `json:"selected"`
	Selection []string `json:"selection"`
}

type ProductResponse struct {
	ProductID           *int     `json:"product_id,omitempty"`
	ProductName         string   `json:"product_name"`
	Aisle               string   `json:"aisle"`
	Department          string   `json:"department"`
	ImageURL            *string  `json:"image_url,omitempty"`
	Price               *float64 `json:"price,omitempty"`
	DiscountPrice       *float64 `json:"discount_price,omitempty"`
	OnSale              bool     `json:"on_sale"`
	DaysUntilExpiration *int     `json:"days_until_expiration,omitempty"`
}

type RecommendationsResponse struct {
	Initial           []ProductResponse `json:"initial_recommendations"`
	MoodRelated       []ProductResponse `json:"mood_related_recommendations"`
	CloseToExpiration []ProductResponse `json:"close_to_exp_recommendations"`
	PurchaseHistory   []ProductResponse `json:"actual_purchased_products"`
}
