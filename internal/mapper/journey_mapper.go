package mapper

import (
	"smart-supermarket/internal/catalog"
	"smart-supermarket/internal/dto"
	"smart-supermarket/internal/identity"
	"smart-supermarket/internal/journey"
	"smart-supermarket/internal/recommendation"
	"smart-supermarket/internal/session"
	"smart-supermarket/pkg/utils"
)

type JourneyMapper struct{}

func NewJourneyMapper() *JourneyMapper {
	return &JourneyMapper{}
}

func (m *JourneyMapper) ToSessionResponse(s session.Session) dto.SessionResponse {
	return dto.SessionResponse{
		UserID:       s.UserID,
		UserName:     s.UserName,
		DetectedMood: s.DetectedMood,
		IsLoggedIn:   s.IsLoggedIn,
	}
}

func (m *JourneyMapper) ToJourneyResponse(s journey.Snapshot) *dto.JourneyResponse {
	selected := s.Selected
	if selected == nil {
		selected = []string{}
	}
	return &dto.JourneyResponse{
		JourneyID: s.JourneyID,
		State:     string(s.State),
		Session:   m.ToSessionResponse(s.Session),
		Camera: dto.CameraResponse{
			State:        string(s.CameraState),
			PreviewReady: s.PreviewReady,
		},
		Message:            s.Message,
		Selected:           selected,
		HasRecommendations: s.HasRecommendations,
		Busy:               s.Busy,
	}
}

func (m *JourneyMapper) ToIdentifyResponse(r *identity.Result) *dto.IdentifyResponse {
	if r == nil {
		return nil
	}
	return &dto.IdentifyResponse{
		Outcome:  string(r.Outcome),
		UserID:   r.UserID,
		UserName: r.UserName,
		Mood:     r.Mood,
		Message:  r.Message,
		PhotoURL: r.PhotoURL,
	}
}

func (m *JourneyMapper) ToSurveyResponse(s *journey.Survey) *dto.SurveyResponse {
	selected := make(map[string]bool, len(s.Selected))
	for _, name := range s.Selected {
		selected[name] = true
	}

	departments := make([]dto.DepartmentResponse, 0, len(s.Departments))
	for _, g := range s.Departments {
		departments = append(departments, m.toDepartmentResponse(g, selected))
	}

	names := s.Selected
	if names == nil {
		names = []string{}
	}
	return &dto.SurveyResponse{Departments: departments, Selected: names}
}

func (m *JourneyMapper) toDepartmentResponse(g catalog.DepartmentGroup, selected map[string]bool) dto.DepartmentResponse {
	aisles := make([]dto.AisleResponse, 0, len(g.Aisles))
	for _, a := range g.Aisles {
		aisles = append(aisles, dto.AisleResponse{
			AisleID:        a.AisleID,
			Aisle:          a.Name,
			DisplayName:    utils.TitleCase(a.Name),
			TotalPurchases: a.TotalPurchases,
			Selected:       selected[a.Name],
		})
	}
	return dto.DepartmentResponse{
		Department:  g.Department,
		DisplayName: utils.TitleCase(g.Department),
		Aisles:      aisles,
	}
}

func (m *JourneyMapper) ToRecommendationsResponse(r *recommendation.Response) *dto.RecommendationsResponse {
	if r == nil {
		return nil
	}
	return &dto.RecommendationsResponse{
		Initial:           m.toProducts(r.Initial),
		MoodRelated:       m.toProducts(r.MoodRelated),
		CloseToExpiration: m.toProducts(r.CloseToExpiration),
		PurchaseHistory:   m.toProducts(r.PurchaseHistory),
	}
}

func (m *JourneyMapper) toProducts(in []recommendation.Product) []dto.ProductResponse {
	out := make([]dto.ProductResponse, 0, len(in))
	for _, p := range in {
		out = append(out, dto.ProductResponse{
			ProductID:           p.ProductID,
			ProductName:         p.ProductName,
			Aisle:               utils.TitleCase(p.Aisle),
			Department:          utils.TitleCase(p.Department),
			ImageURL:            p.ImageURL,
			Price:               p.Price,
			DiscountPrice:       p.DiscountPrice,
			OnSale:              p.OnSale(),
			DaysUntilExpiration: p.DaysUntilExpiration,
		})
	}
	return out
}
