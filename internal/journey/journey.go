// Package journey drives one shopper through the kiosk: camera, identification,
// the optional aisle survey and recommendations. It is the only writer of the
// session store.
package journey

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"smart-supermarket/internal/apperr"
	"smart-supermarket/internal/capture"
	"smart-supermarket/internal/catalog"
	"smart-supermarket/internal/identity"
	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/internal/recommendation"
	"smart-supermarket/internal/repository/contract"
	"smart-supermarket/internal/session"
	"smart-supermarket/pkg/events"

	"github.com/google/uuid"
)

type State string

const (
	StateAnonymous            State = "ANONYMOUS"
	StateCapturingForAuth     State = "CAPTURING_FOR_AUTH"
	StateSignupPending        State = "SIGNUP_PENDING"
	StateLoginPending         State = "LOGIN_PENDING"
	StateAuthenticated        State = "AUTHENTICATED"
	StateSurveyOptional       State = "SURVEY_OPTIONAL"
	StateRecommendationsReady State = "RECOMMENDATIONS_READY"
)

const TopicTransitions = "journey.transitions"

type SignupPolicy string

const (
	// PolicyAutoLogin logs a freshly registered shopper straight in.
	PolicyAutoLogin SignupPolicy = "auto_login"
	// PolicyRequireLogin sends a freshly registered shopper back to the camera to log in.
	PolicyRequireLogin SignupPolicy = "require_login"
)

func ParseSignupPolicy(s string) SignupPolicy {
	if SignupPolicy(strings.ToLower(strings.TrimSpace(s))) == PolicyRequireLogin {
		return PolicyRequireLogin
	}
	return PolicyAutoLogin
}

const msgSignupComplete = "Account created. Please log in with your photo."

var (
	errInFlight      = apperr.New(apperr.KindRequestInFlight, "A request is already in progress. Please wait.")
	errStale         = apperr.New(apperr.KindStale, "The session changed while the request was in progress.")
	errAlreadyIn     = apperr.New(apperr.KindNotReady, "You are already logged in. Log out first.")
	errLoginFirst    = apperr.New(apperr.KindNotReady, "Please log in first.")
	errSurveyNotOpen = apperr.New(apperr.KindNotReady, "Open the aisle survey first.")
)

// Camera is the part of capture.Controller the journey drives.
type Camera interface {
	Start(ctx context.Context) (capture.State, error)
	Capture(ctx context.Context) (*capture.Frame, error)
	Stop()
	State() capture.State
	PreviewReady() bool
}

type EventPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

type Deps struct {
	Sessions    *session.Store
	Camera      Camera
	Identity    identity.IIdentityService
	Recommender recommendation.IRecommendationClient
	Catalog     catalog.ICatalogLoader
	Directory   contract.UserDirectoryRepository
	Publisher   EventPublisher
	Logger      logger.ILogger
	Policy      SignupPolicy
}

// survey caches the catalog for as long as it is open.
type survey struct {
	catalog   *catalog.Catalog
	selection *catalog.Selection
}

type Journey struct {
	id          string
	sessions    *session.Store
	camera      Camera
	identity    identity.IIdentityService
	recommender recommendation.IRecommendationClient
	catalogs    catalog.ICatalogLoader
	directory   contract.UserDirectoryRepository
	publisher   EventPublisher
	logger      logger.ILogger
	policy      SignupPolicy
	now         func() time.Time

	inFlight atomic.Bool

	mu      sync.Mutex
	state   State
	message string
	survey  *survey
	recs    *recommendation.Response
}

func New(d Deps) *Journey {
	policy := d.Policy
	if policy == "" {
		policy = PolicyAutoLogin
	}
	return &Journey{
		id:          uuid.NewString(),
		sessions:    d.Sessions,
		camera:      d.Camera,
		identity:    d.Identity,
		recommender: d.Recommender,
		catalogs:    d.Catalog,
		directory:   d.Directory,
		publisher:   d.Publisher,
		logger:      d.Logger,
		policy:      policy,
		now:         time.Now,
		state:       StateAnonymous,
	}
}

func (j *Journey) ID() string {
	return j.id
}

func (j *Journey) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// BeginCapture turns the camera on for identification. It is refused while
// a photo is being identified.
func (j *Journey) BeginCapture(ctx context.Context) error {
	if j.sessions.Current().IsLoggedIn {
		return errAlreadyIn
	}
	if j.inFlight.Load() {
		return errInFlight
	}
	if _, err := j.camera.Start(ctx); err != nil {
		return err
	}
	j.transition(ctx, StateCapturingForAuth, "camera started", "")
	return nil
}

// EndCapture turns the camera off without submitting anything.
func (j *Journey) EndCapture(ctx context.Context) {
	j.camera.Stop()
	if j.State() == StateCapturingForAuth {
		j.transition(ctx, StateAnonymous, "camera stopped", "")
	}
}

// Identify captures a still and resolves it to a shopper. Inputs are checked
// before the camera is touched. An ambiguous match returns a nil result and an
// AmbiguousIdentity error whose message is the server's prompt.
func (j *Journey) Identify(ctx context.Context, intent identity.Intent, name string) (*identity.Result, error) {
	if err := identity.ValidateSubmission(intent, name); err != nil {
		return nil, err
	}
	if j.sessions.Current().IsLoggedIn {
		return nil, errAlreadyIn
	}
	if !j.inFlight.CompareAndSwap(false, true) {
		return nil, errInFlight
	}
	defer j.inFlight.Store(false)

	frame, err := j.camera.Capture(ctx)
	if err != nil {
		return nil, err
	}
	// The camera is released however the submission ends.
	defer j.camera.Stop()

	pending := StateLoginPending
	if intent == identity.IntentNewAccount {
		pending = StateSignupPending
	}
	generation := j.sessions.Generation()
	j.transition(ctx, pending, "photo submitted", "")

	res, err := j.identity.Submit(ctx, frame, intent, name)

	if !j.current(generation, pending) {
		j.logger.Warn("Journey", "Discarding stale identity response", map[string]interface{}{"journey_id": j.id})
		return nil, errStale
	}

	if err != nil {
		j.transition(ctx, StateCapturingForAuth, "identity request failed", apperr.Message(err))
		return nil, err
	}

	switch res.Outcome {
	case identity.OutcomeAmbiguous:
		j.transition(ctx, StateCapturingForAuth, "no confident match", res.Message)
		return nil, res.Err()

	case identity.OutcomeNewAccount:
		if j.policy == PolicyRequireLogin {
			j.transition(ctx, StateCapturingForAuth, "account created", msgSignupComplete)
			return res, nil
		}
		userID, err := j.register(ctx, res, name)
		if err != nil {
			j.transition(ctx, StateCapturingForAuth, "registration failed", apperr.Message(err))
			return nil, err
		}
		res.UserID = &userID

	case identity.OutcomeRecognized:
		j.rememberMood(ctx, *res.UserID, res.UserName, res.Mood)
	}

	userName := res.UserName
	if userName == "" {
		userName = strings.TrimSpace(name)
	}
	res.UserName = userName
	j.sessions.Login(*res.UserID, userName, res.Mood)
	j.transition(ctx, StateAuthenticated, "identified", res.Message)
	return res, nil
}

// register allocates an id for a new shopper unless the identity endpoint
// already assigned one.
func (j *Journey) register(ctx context.Context, res *identity.Result, name string) (int, error) {
	userName := res.UserName
	if userName == "" {
		userName = strings.TrimSpace(name)
	}
	if res.UserID != nil {
		j.rememberMood(ctx, *res.UserID, userName, res.Mood)
		return *res.UserID, nil
	}
	profile, err := j.directory.Register(ctx, userName, res.Mood)
	if err != nil {
		j.logger.Error("Journey", "User registration failed", map[string]interface{}{"error": err.Error()})
		return 0, apperr.Transport("Failed to create your account. Please try again.", err)
	}
	j.logger.Info("Journey", "User registered", map[string]interface{}{"user_id": profile.UserID})
	return profile.UserID, nil
}

func (j *Journey) rememberMood(ctx context.Context, userID int, userName, mood string) {
	err := j.directory.Save(ctx, &contract.Profile{UserID: userID, UserName: userName, Mood: mood})
	if err != nil {
		j.logger.Warn("Journey", "Failed to store detected mood", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// Logout ends the journey from any state. It never fails.
func (j *Journey) Logout(ctx context.Context) {
	j.camera.Stop()
	j.sessions.Logout()

	j.mu.Lock()
	j.survey = nil
	j.recs = nil
	j.mu.Unlock()

	j.transition(ctx, StateAnonymous, "logged out", "")
}

// Survey is the aisle picker shown to a logged-in shopper.
type Survey struct {
	Departments []catalog.DepartmentGroup
	Selected    []string
}

// OpenSurvey loads the aisle catalog once per survey. A shopper without a
// detected mood gets the one stored at signup.
func (j *Journey) OpenSurvey(ctx context.Context) (*Survey, error) {
	sess := j.sessions.Current()
	if !sess.IsLoggedIn {
		return nil, errLoginFirst
	}

	j.mu.Lock()
	sv := j.survey
	j.mu.Unlock()

	if sv == nil {
		c, err := j.catalogs.Load(ctx)
		if err != nil {
			return nil, err
		}
		sv = &survey{catalog: c, selection: catalog.NewSelection()}

		j.mu.Lock()
		if j.survey == nil {
			j.survey = sv
		} else {
			sv = j.survey
		}
		j.mu.Unlock()
	}

	if strings.TrimSpace(sess.DetectedMood) == "" {
		j.restoreMood(ctx, sess)
	}

	j.transition(ctx, StateSurveyOptional, "survey opened", "")
	return j.surveyView(sv), nil
}

func (j *Journey) restoreMood(ctx context.Context, sess session.Session) {
	profile, err := j.directory.Get(ctx, *sess.UserID)
	if err != nil {
		if !errors.Is(err, contract.ErrProfileNotFound) {
			j.logger.Warn("Journey", "Failed to look up stored mood", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	if profile.Mood == "" {
		return
	}
	j.sessions.Login(*sess.UserID, sess.UserName, profile.Mood)
}

func (j *Journey) surveyView(sv *survey) *Survey {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &Survey{Departments: sv.catalog.Departments(), Selected: sv.selection.Names()}
}

// ToggleAisle selects or deselects an aisle by display name and reports
// whether it is selected afterwards.
func (j *Journey) ToggleAisle(name string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.survey == nil {
		return false, errSurveyNotOpen
	}
	if _, err := j.survey.catalog.Resolve([]string{name}); err != nil {
		return false, apperr.Validation("Unknown aisle %q.", name)
	}
	return j.survey.selection.Toggle(name), nil
}

func (j *Journey) Selection() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.survey == nil {
		return nil
	}
	return j.survey.selection.Names()
}

// SubmitSurvey requests recommendations for the selected aisles. Survey
// recommendations are aisle based, so the user id is left out of the query.
func (j *Journey) SubmitSurvey(ctx context.Context, count int) (*recommendation.Response, error) {
	j.mu.Lock()
	sv := j.survey
	var names []string
	if sv != nil {
		names = sv.selection.Names()
	}
	j.mu.Unlock()

	if sv == nil {
		return nil, errSurveyNotOpen
	}
	aisleIDs, err := sv.catalog.Resolve(names)
	if err != nil {
		return nil, err
	}
	return j.request(ctx, aisleIDs, count, false)
}

// Recommend requests recommendations from the shopper's purchase history.
func (j *Journey) Recommend(ctx context.Context, count int) (*recommendation.Response, error) {
	if !j.sessions.Current().IsLoggedIn {
		return nil, errLoginFirst
	}
	return j.request(ctx, nil, count, true)
}

func (j *Journey) request(ctx context.Context, aisleIDs []int, count int, withUser bool) (*recommendation.Response, error) {
	if !j.inFlight.CompareAndSwap(false, true) {
		return nil, errInFlight
	}
	defer j.inFlight.Store(false)

	generation := j.sessions.Generation()
	sess := j.sessions.Current()
	if !withUser {
		sess.UserID = nil
	}

	resp, err := j.recommender.Request(ctx, sess, aisleIDs, count)

	if j.sessions.Generation() != generation {
		j.logger.Warn("Journey", "Discarding stale recommendations", map[string]interface{}{"journey_id": j.id})
		return nil, errStale
	}
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	j.recs = resp
	j.mu.Unlock()

	j.transition(ctx, StateRecommendationsReady, "recommendations received", "")
	return resp, nil
}

func (j *Journey) Recommendations() *recommendation.Response {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.recs
}

// Snapshot is a consistent read of everything a view renders.
type Snapshot struct {
	JourneyID          string
	State              State
	Session            session.Session
	CameraState        capture.State
	PreviewReady       bool
	Message            string
	Selected           []string
	HasRecommendations bool
	Busy               bool
}

func (j *Journey) Snapshot() Snapshot {
	s := Snapshot{
		JourneyID:    j.id,
		Session:      j.sessions.Current(),
		CameraState:  j.camera.State(),
		PreviewReady: j.camera.PreviewReady(),
		Busy:         j.inFlight.Load(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	s.State = j.state
	s.Message = j.message
	s.HasRecommendations = j.recs != nil
	if j.survey != nil {
		s.Selected = j.survey.selection.Names()
	}
	return s
}

// Close releases the camera.
func (j *Journey) Close() error {
	j.camera.Stop()
	return nil
}

// current reports whether nothing has moved the journey since a request was issued.
func (j *Journey) current(generation uint64, expected State) bool {
	if j.sessions.Generation() != generation {
		return false
	}
	return j.State() == expected
}

func (j *Journey) transition(ctx context.Context, to State, reason, message string) {
	j.mu.Lock()
	from := j.state
	j.state = to
	j.message = message
	j.mu.Unlock()

	evt := events.JourneyTransition{
		JourneyID:  j.id,
		From:       string(from),
		To:         string(to),
		Reason:     reason,
		UserID:     j.sessions.Current().UserID,
		OccurredAt: j.now().UTC(),
	}
	j.logger.Debug("Journey", "Transition", evt.Payload())

	if j.publisher == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := j.publisher.Publish(ctx, payload); err != nil {
		j.logger.Warn("Journey", "Failed to publish transition", map[string]interface{}{"error": err.Error()})
	}
}
