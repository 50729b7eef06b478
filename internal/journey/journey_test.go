package journey

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"smart-supermarket/internal/apperr"
	"smart-supermarket/internal/capture"
	"smart-supermarket/internal/catalog"
	"smart-supermarket/internal/identity"
	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/internal/recommendation"
	"smart-supermarket/internal/repository/memory"
	"smart-supermarket/internal/session"
	"smart-supermarket/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	mu       sync.Mutex
	state    capture.State
	startErr error
	captures int
	stops    int
}

func (c *fakeCamera) Start(ctx context.Context) (capture.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		c.state = capture.StateError
		return c.state, c.startErr
	}
	c.state = capture.StateStreaming
	return c.state, nil
}

func (c *fakeCamera) Capture(ctx context.Context) (*capture.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != capture.StateStreaming {
		return nil, apperr.New(apperr.KindNotReady, "camera not streaming")
	}
	c.captures++
	c.state = capture.StateCaptured
	return &capture.Frame{Data: []byte{1, 2, 3}, MimeType: capture.MimeJPEG, Width: 4, Height: 3}, nil
}

func (c *fakeCamera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.state = capture.StateIdle
}

func (c *fakeCamera) State() capture.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeCamera) PreviewReady() bool {
	return c.State() == capture.StateStreaming
}

func (c *fakeCamera) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

type fakeIdentity struct {
	mu      sync.Mutex
	result  *identity.Result
	err     error
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (f *fakeIdentity) Submit(ctx context.Context, frame *capture.Frame, intent identity.Intent, name string) (*identity.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

type recCall struct {
	sess     session.Session
	aisleIDs []int
	count    int
}

type fakeRecommender struct {
	mu      sync.Mutex
	resp    *recommendation.Response
	err     error
	calls   []recCall
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRecommender) Request(ctx context.Context, sess session.Session, aisleIDs []int, count int) (*recommendation.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recCall{sess: sess, aisleIDs: aisleIDs, count: count})
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeLoader struct {
	loads int
}

func (f *fakeLoader) Load(ctx context.Context) (*catalog.Catalog, error) {
	f.loads++
	return catalog.New([]catalog.AisleRecord{
		{AisleID: 12, Name: "Fresh Fruits", Department: "produce", TotalPurchases: 100},
		{AisleID: 47, Name: "Yogurt", Department: "dairy eggs", TotalPurchases: 50},
	}), nil
}

type capturePublisher struct {
	mu          sync.Mutex
	transitions []events.JourneyTransition
}

func (p *capturePublisher) Publish(ctx context.Context, payload []byte) error {
	var evt events.JourneyTransition
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	p.mu.Lock()
	p.transitions = append(p.transitions, evt)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) states() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.transitions))
	for _, t := range p.transitions {
		out = append(out, t.To)
	}
	return out
}

type harness struct {
	journey     *Journey
	sessions    *session.Store
	camera      *fakeCamera
	identity    *fakeIdentity
	recommender *fakeRecommender
	loader      *fakeLoader
	directory   *memory.UserDirectoryRepository
	publisher   *capturePublisher
}

func newHarness(policy SignupPolicy) *harness {
	h := &harness{
		sessions:    session.NewStore(),
		camera:      &fakeCamera{state: capture.StateIdle},
		identity:    &fakeIdentity{},
		recommender: &fakeRecommender{resp: &recommendation.Response{Initial: []recommendation.Product{{ProductName: "Banana"}}}},
		loader:      &fakeLoader{},
		directory:   memory.NewUserDirectoryRepository(),
		publisher:   &capturePublisher{},
	}
	h.journey = New(Deps{
		Sessions:    h.sessions,
		Camera:      h.camera,
		Identity:    h.identity,
		Recommender: h.recommender,
		Catalog:     h.loader,
		Directory:   h.directory,
		Publisher:   h.publisher,
		Logger:      logger.NewNopLogger(),
		Policy:      policy,
	})
	return h
}

func intPtr(v int) *int { return &v }

func TestReturningShopperLogsIn(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	h.identity.result = &identity.Result{Outcome: identity.OutcomeRecognized, UserID: intPtr(7), UserName: "Jo", Mood: "happy"}
	ctx := context.Background()

	require.NoError(t, h.journey.BeginCapture(ctx))
	res, err := h.journey.Identify(ctx, identity.IntentReturning, "")
	require.NoError(t, err)
	assert.Equal(t, 7, *res.UserID)

	sess := h.sessions.Current()
	assert.True(t, sess.IsLoggedIn)
	assert.Equal(t, 7, *sess.UserID)
	assert.Equal(t, "Jo", sess.UserName)
	assert.Equal(t, "happy", sess.DetectedMood)

	assert.Equal(t, StateAuthenticated, h.journey.State())
	assert.Equal(t, capture.StateIdle, h.camera.State(), "camera released after the answer")
	assert.Equal(t, []string{"CAPTURING_FOR_AUTH", "LOGIN_PENDING", "AUTHENTICATED"}, h.publisher.states())

	stored, err := h.directory.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "happy", stored.Mood)
}

func TestSignupAutoLoginAllocatesID(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	h.identity.result = &identity.Result{Outcome: identity.OutcomeNewAccount, Mood: "neutral"}
	ctx := context.Background()

	require.NoError(t, h.journey.BeginCapture(ctx))
	res, err := h.journey.Identify(ctx, identity.IntentNewAccount, " Sam ")
	require.NoError(t, err)
	require.NotNil(t, res.UserID)
	assert.Equal(t, 1, *res.UserID)

	sess := h.sessions.Current()
	assert.Equal(t, "Sam", sess.UserName)
	assert.Equal(t, "neutral", sess.DetectedMood)
	assert.Equal(t, StateAuthenticated, h.journey.State())
}

func TestSignupRequireLoginReturnsToCamera(t *testing.T) {
	h := newHarness(PolicyRequireLogin)
	h.identity.result = &identity.Result{Outcome: identity.OutcomeNewAccount, Mood: "neutral"}
	ctx := context.Background()

	require.NoError(t, h.journey.BeginCapture(ctx))
	res, err := h.journey.Identify(ctx, identity.IntentNewAccount, "Sam")
	require.NoError(t, err)
	assert.Equal(t, identity.OutcomeNewAccount, res.Outcome)

	assert.False(t, h.sessions.Current().IsLoggedIn)
	snap := h.journey.Snapshot()
	assert.Equal(t, StateCapturingForAuth, snap.State)
	assert.Equal(t, msgSignupComplete, snap.Message)
}

func TestAmbiguousLeavesSessionUntouched(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	msg := "No matching user found. Please ensure your photo is clear or sign up if you haven't yet."
	h.identity.result = &identity.Result{Outcome: identity.OutcomeAmbiguous, Message: msg}
	ctx := context.Background()

	require.NoError(t, h.journey.BeginCapture(ctx))
	before := h.sessions.Generation()
	res, err := h.journey.Identify(ctx, identity.IntentReturning, "")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperr.ErrAmbiguousIdentity)
	assert.Equal(t, msg, apperr.Message(err))
	assert.Equal(t, session.Anonymous(), h.sessions.Current())
	assert.Equal(t, before, h.sessions.Generation())
	assert.Equal(t, StateCapturingForAuth, h.journey.State())
	assert.Equal(t, capture.StateIdle, h.camera.State())
}

func TestTransportErrorReturnsToCapture(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	h.identity.err = apperr.Transport("Missing required parameters", nil)
	ctx := context.Background()

	require.NoError(t, h.journey.BeginCapture(ctx))
	_, err := h.journey.Identify(ctx, identity.IntentReturning, "")

	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
	assert.False(t, h.sessions.Current().IsLoggedIn)
	assert.Equal(t, StateCapturingForAuth, h.journey.State())
	assert.Equal(t, "Missing required parameters", h.journey.Snapshot().Message)
}

func TestIdentifyValidatesBeforeCapture(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	ctx := context.Background()
	require.NoError(t, h.journey.BeginCapture(ctx))

	_, err := h.journey.Identify(ctx, identity.IntentNewAccount, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, h.camera.captures)
	assert.Zero(t, h.identity.calls)
	assert.Equal(t, capture.StateStreaming, h.camera.State())
}

func TestIdentifyWithoutCameraIsNotReady(t *testing.T) {
	h := newHarness(PolicyAutoLogin)

	_, err := h.journey.Identify(context.Background(), identity.IntentReturning, "")
	assert.ErrorIs(t, err, apperr.ErrNotReady)
	assert.Zero(t, h.identity.calls)
	assert.Equal(t, StateAnonymous, h.journey.State())
}

func TestBeginCapturePermissionDenied(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	h.camera.startErr = apperr.New(apperr.KindPermissionDenied, "Unable to access the camera.")

	err := h.journey.BeginCapture(context.Background())
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	assert.Equal(t, StateAnonymous, h.journey.State())
}

func TestSecondIdentifyWhileInFlightIsRejected(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	h.identity.result = &identity.Result{Outcome: identity.OutcomeRecognized, UserID: intPtr(3), UserName: "Al", Mood: "sad"}
	h.identity.entered = make(chan struct{}, 1)
	h.identity.release = make(chan struct{})
	ctx := context.Background()
	require.NoError(t, h.journey.BeginCapture(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := h.journey.Identify(ctx, identity.IntentReturning, "")
		done <- err
	}()
	<-h.identity.entered

	_, err := h.journey.Identify(ctx, identity.IntentReturning, "")
	assert.ErrorIs(t, err, apperr.ErrRequestInFlight)
	assert.True(t, h.journey.Snapshot().Busy)

	close(h.identity.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.identity.calls)
}

func TestLogoutDuringIdentifyDiscardsResponse(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	h.identity.result = &identity.Result{Outcome: identity.OutcomeRecognized, UserID: intPtr(3), UserName: "Al", Mood: "sad"}
	h.identity.entered = make(chan struct{}, 1)
	h.identity.release = make(chan struct{})
	ctx := context.Background()
	require.NoError(t, h.journey.BeginCapture(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := h.journey.Identify(ctx, identity.IntentReturning, "")
		done <- err
	}()
	<-h.identity.entered

	h.journey.Logout(ctx)
	close(h.identity.release)

	assert.ErrorIs(t, <-done, apperr.ErrStale)
	assert.False(t, h.sessions.Current().IsLoggedIn)
	assert.Equal(t, StateAnonymous, h.journey.State())
}

func loggedIn(t *testing.T, h *harness, mood string) {
	t.Helper()
	h.identity.result = &identity.Result{Outcome: identity.OutcomeRecognized, UserID: intPtr(42), UserName: "Jo", Mood: mood}
	ctx := context.Background()
	require.NoError(t, h.journey.BeginCapture(ctx))
	_, err := h.journey.Identify(ctx, identity.IntentReturning, "")
	require.NoError(t, err)
}

func TestSurveyFlow(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	loggedIn(t, h, "happy")
	ctx := context.Background()

	sv, err := h.journey.OpenSurvey(ctx)
	require.NoError(t, err)
	assert.Len(t, sv.Departments, 2)
	assert.Equal(t, StateSurveyOptional, h.journey.State())

	_, err = h.journey.SubmitSurvey(ctx, 10)
	assert.ErrorIs(t, err, catalog.ErrNoAislesSelected)
	assert.Empty(t, h.recommender.calls)

	for _, name := range []string{"Fresh Fruits", "Yogurt"} {
		on, err := h.journey.ToggleAisle(name)
		require.NoError(t, err)
		assert.True(t, on)
	}
	_, err = h.journey.ToggleAisle("Caviar")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	resp, err := h.journey.SubmitSurvey(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total())

	require.Len(t, h.recommender.calls, 1)
	call := h.recommender.calls[0]
	assert.Equal(t, []int{12, 47}, call.aisleIDs)
	assert.Equal(t, 10, call.count)
	assert.Nil(t, call.sess.UserID, "survey recommendations are aisle based")
	assert.Equal(t, "happy", call.sess.DetectedMood)
	assert.Equal(t, StateRecommendationsReady, h.journey.State())
	assert.Same(t, resp, h.journey.Recommendations())

	_, err = h.journey.OpenSurvey(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.loader.loads, "catalog cached on the open survey")
	assert.Equal(t, []string{"Fresh Fruits", "Yogurt"}, h.journey.Selection())
}

func TestSurveyRequiresLogin(t *testing.T) {
	h := newHarness(PolicyAutoLogin)

	_, err := h.journey.OpenSurvey(context.Background())
	assert.ErrorIs(t, err, apperr.ErrNotReady)
	_, err = h.journey.ToggleAisle("Yogurt")
	assert.ErrorIs(t, err, apperr.ErrNotReady)
	_, err = h.journey.Recommend(context.Background(), 10)
	assert.ErrorIs(t, err, apperr.ErrNotReady)
}

func TestOpenSurveyRestoresStoredMood(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	ctx := context.Background()
	loggedIn(t, h, "")

	h.journey.rememberMood(ctx, 42, "Jo", "sad")
	_, err := h.journey.OpenSurvey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sad", h.sessions.Current().DetectedMood)
}

func TestRecommendUsesHistory(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	loggedIn(t, h, "angry")

	_, err := h.journey.Recommend(context.Background(), 5)
	require.NoError(t, err)

	call := h.recommender.calls[0]
	assert.Empty(t, call.aisleIDs)
	require.NotNil(t, call.sess.UserID)
	assert.Equal(t, 42, *call.sess.UserID)
}

func TestRecommendErrorKeepsState(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	loggedIn(t, h, "angry")
	h.recommender.err = apperr.New(apperr.KindEmptyResult, "none")

	_, err := h.journey.Recommend(context.Background(), 5)
	assert.ErrorIs(t, err, apperr.ErrEmptyResult)
	assert.Equal(t, StateAuthenticated, h.journey.State())
	assert.Nil(t, h.journey.Recommendations())
}

func TestLogoutDuringRecommendDiscardsResponse(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	loggedIn(t, h, "happy")
	h.recommender.entered = make(chan struct{}, 1)
	h.recommender.release = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := h.journey.Recommend(ctx, 10)
		done <- err
	}()
	<-h.recommender.entered
	h.journey.Logout(ctx)
	close(h.recommender.release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, apperr.ErrStale)
	case <-time.After(time.Second):
		t.Fatal("recommend did not return")
	}
	assert.Nil(t, h.journey.Recommendations())
	assert.Equal(t, StateAnonymous, h.journey.State())
}

func TestLogoutResetsEverything(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	loggedIn(t, h, "happy")
	ctx := context.Background()
	_, err := h.journey.OpenSurvey(ctx)
	require.NoError(t, err)
	_, err = h.journey.ToggleAisle("Yogurt")
	require.NoError(t, err)

	stops := h.camera.stopCount()
	h.journey.Logout(ctx)
	h.journey.Logout(ctx)

	assert.Equal(t, session.Anonymous(), h.sessions.Current())
	assert.Nil(t, h.journey.Selection())
	assert.Equal(t, StateAnonymous, h.journey.State())
	assert.Greater(t, h.camera.stopCount(), stops)

	require.NoError(t, h.journey.BeginCapture(ctx), "a new shopper can start over")
}

func TestBeginCaptureWhileLoggedIn(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	loggedIn(t, h, "happy")

	assert.ErrorIs(t, h.journey.BeginCapture(context.Background()), apperr.ErrNotReady)
}

func TestEndCaptureAndClose(t *testing.T) {
	h := newHarness(PolicyAutoLogin)
	ctx := context.Background()
	require.NoError(t, h.journey.BeginCapture(ctx))

	h.journey.EndCapture(ctx)
	assert.Equal(t, StateAnonymous, h.journey.State())
	assert.Equal(t, capture.StateIdle, h.camera.State())

	require.NoError(t, h.journey.BeginCapture(ctx))
	require.NoError(t, h.journey.Close())
	assert.Equal(t, capture.StateIdle, h.camera.State())
}

func TestParseSignupPolicy(t *testing.T) {
	assert.Equal(t, PolicyRequireLogin, ParseSignupPolicy(" REQUIRE_LOGIN "))
	assert.Equal(t, PolicyAutoLogin, ParseSignupPolicy("auto_login"))
	assert.Equal(t, PolicyAutoLogin, ParseSignupPolicy(""))
}
