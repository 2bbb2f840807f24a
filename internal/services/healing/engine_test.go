package healing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/models"
	"github.com/ternarybob/visionone/internal/services/artifacts"
	"github.com/ternarybob/visionone/internal/services/browser/browsertest"
	"github.com/ternarybob/visionone/internal/services/locator"
	"github.com/ternarybob/visionone/internal/services/oracle"
	"github.com/ternarybob/visionone/internal/services/report"
)

const loginHTML = `<html><head></head><body>
<form>
  <input id="email" type="email">
  <input id="password" type="password">
  <button id="btn-login-v2"><span>Sign In</span></button>
</form>
</body></html>`

// MockOracle is a mock implementation of interfaces.Oracle
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Query(ctx context.Context, prompt, imagePath string) (string, bool) {
	args := m.Called(ctx, prompt, imagePath)
	return args.String(0), args.Bool(1)
}

func (m *MockOracle) Name() string { return "mock" }

type fixture struct {
	page    *browsertest.FakePage
	session *report.Session
	engine  *Engine
	dir     string
}

func newFixture(t *testing.T, o interfaces.Oracle) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := arbor.NewLogger()

	page := browsertest.New()
	page.Content = loginHTML
	session := report.NewSession(dir, logger)
	capturer := artifacts.NewCapturer(page, dir, logger)

	return &fixture{
		page:    page,
		session: session,
		engine:  NewEngine(page, o, capturer, session, 0, logger),
		dir:     dir,
	}
}

// markMatchVisible makes the element the resolver will pick for text visible
func (f *fixture) markMatchVisible(t *testing.T, text string) string {
	t.Helper()
	doc, err := locator.ParseHTML(f.page.Content)
	require.NoError(t, err)
	m := locator.Resolve(doc, locator.RoleButton, text)
	require.NotNil(t, m)
	f.page.SetVisible(true, m.Selector)
	return m.Selector
}

func lastEvent(t *testing.T, s *report.Session) models.Event {
	t.Helper()
	events := s.Snapshot().Events
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func TestAttemptInteraction_PrimarySuccess(t *testing.T) {
	f := newFixture(t, oracle.None{})
	f.page.SetVisible(true, "#play")

	outcome := f.engine.AttemptInteraction(context.Background(), "#play", "Play")

	assert.Equal(t, models.OutcomeSuccess, outcome.Status)
	assert.Equal(t, []string{"#play"}, f.page.Clicks)
	assert.Empty(t, f.page.Screenshots)

	r := f.session.Snapshot()
	assert.Equal(t, 1, r.TestsRun)
	assert.Equal(t, 1, r.Passes)
	assert.Equal(t, 0, r.HealedCount)

	e := lastEvent(t, f.session)
	assert.Equal(t, models.EventSmartClick, e.Type)
	assert.Equal(t, models.StatusSuccess, e.Status)
	assert.Equal(t, "Clicked #play", e.Details)
}

func TestAttemptInteraction_HealedByOracle(t *testing.T) {
	o := new(MockOracle)
	f := newFixture(t, o)
	selector := f.markMatchVisible(t, "Sign In")

	o.On("Query", mock.Anything, Prompt("Login Button", "#msg-btn-login"), mock.AnythingOfType("string")).
		Return(`"Sign In".`, true).Once()

	outcome := f.engine.AttemptInteraction(context.Background(), "#msg-btn-login", "Login Button")

	o.AssertExpectations(t)
	assert.Equal(t, models.OutcomeHealed, outcome.Status)
	assert.Equal(t, "Sign In", outcome.SearchText)
	assert.Equal(t, selector, outcome.Selector)
	assert.Equal(t, []string{selector}, f.page.Scrolls)
	assert.Equal(t, []string{selector}, f.page.ForceClicks)
	assert.True(t, strings.HasPrefix(outcome.Screenshot, "fail_Login_Button_"))

	r := f.session.Snapshot()
	assert.Equal(t, 1, r.TestsRun)
	assert.Equal(t, 1, r.Passes)
	assert.Equal(t, 1, r.HealedCount)
	assert.Equal(t, 0, r.Failures)

	e := lastEvent(t, f.session)
	assert.Equal(t, models.StatusHealed, e.Status)
	assert.Equal(t, "Clicked via text: Sign In. Screenshot: "+outcome.Screenshot, e.Details)
}

func TestAttemptInteraction_OraclePromptReceivesScreenshot(t *testing.T) {
	o := new(MockOracle)
	f := newFixture(t, o)
	f.markMatchVisible(t, "Sign In")

	var imagePath string
	o.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { imagePath = args.String(2) }).
		Return("NOT_FOUND", true)

	f.engine.AttemptInteraction(context.Background(), "#msg-btn-login", "Sign In")

	require.NotEmpty(t, imagePath)
	assert.Equal(t, f.dir, filepath.Dir(imagePath))
	assert.FileExists(t, imagePath)
}

func TestAttemptInteraction_FallsBackToDescription(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		ok     bool
	}{
		{"oracle says not found", "NOT_FOUND", true},
		{"oracle absent", "", false},
		{"oracle returns blank", "  ''  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := new(MockOracle)
			o.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(tt.answer, tt.ok)
			f := newFixture(t, o)
			f.markMatchVisible(t, "Sign In")

			outcome := f.engine.AttemptInteraction(context.Background(), "#msg-btn-login", "Sign In")

			assert.Equal(t, models.OutcomeHealed, outcome.Status)
			assert.Equal(t, "Sign In", outcome.SearchText)
			assert.Equal(t, 1, f.session.Snapshot().HealedCount)
		})
	}
}

func TestAttemptInteraction_NoMatchFails(t *testing.T) {
	f := newFixture(t, oracle.None{})

	outcome := f.engine.AttemptInteraction(context.Background(), "#checkout", "Checkout")

	assert.Equal(t, models.OutcomeFail, outcome.Status)
	assert.ErrorIs(t, outcome.Err, errNotFound)
	assert.Empty(t, f.page.ForceClicks)

	r := f.session.Snapshot()
	assert.Equal(t, 1, r.TestsRun)
	assert.Equal(t, 1, r.Failures)
	assert.Equal(t, 0, r.Passes)

	e := lastEvent(t, f.session)
	assert.Equal(t, models.StatusFail, e.Status)
	assert.Equal(t, errNotFound.Error()+". Screenshot: "+outcome.Screenshot, e.Details)

	// evidence before healing plus the critical failure frame
	require.Len(t, f.page.Screenshots, 2)
	assert.Contains(t, filepath.Base(f.page.Screenshots[0]), "fail_Checkout_")
	assert.Contains(t, filepath.Base(f.page.Screenshots[1]), "critical_fail_Checkout_")
}

func TestAttemptInteraction_HiddenMatchFails(t *testing.T) {
	f := newFixture(t, oracle.None{})

	outcome := f.engine.AttemptInteraction(context.Background(), "#msg-btn-login", "Sign In")

	assert.Equal(t, models.OutcomeFail, outcome.Status)
	assert.ErrorIs(t, outcome.Err, errNotVisible)
	assert.Empty(t, f.page.ForceClicks)
}

func TestAttemptInteraction_HiddenEarlierDuplicateFails(t *testing.T) {
	f := newFixture(t, oracle.None{})
	f.page.Content = `<html><head></head><body>
<nav class="mobile"><button id="nav-play">Play</button></nav>
<main><button id="main-play">Play</button></main>
</body></html>`

	doc, err := locator.ParseHTML(f.page.Content)
	require.NoError(t, err)
	f.page.SetVisible(true, locator.CSSPath(doc.Find("#main-play")))

	outcome := f.engine.AttemptInteraction(context.Background(), "#play-v2", "Play")

	assert.Equal(t, models.OutcomeFail, outcome.Status)
	assert.ErrorIs(t, outcome.Err, errNotVisible)
	assert.Empty(t, f.page.ForceClicks)
}

func TestAttemptInteraction_ForceClickError(t *testing.T) {
	f := newFixture(t, oracle.None{})
	f.markMatchVisible(t, "Sign In")
	f.page.ForceClickErr = errors.New("node detached")

	outcome := f.engine.AttemptInteraction(context.Background(), "#msg-btn-login", "Sign In")

	assert.Equal(t, models.OutcomeFail, outcome.Status)
	assert.Contains(t, lastEvent(t, f.session).Details, "node detached. Screenshot: ")
	assert.Equal(t, 1, f.session.Snapshot().Failures)
}

func TestAttemptInteraction_ScreenshotFailureSkipsOracle(t *testing.T) {
	o := new(MockOracle)
	f := newFixture(t, o)
	f.markMatchVisible(t, "Sign In")
	f.page.ScreenshotErr = errors.New("capture failed")

	outcome := f.engine.AttemptInteraction(context.Background(), "#msg-btn-login", "Sign In")

	o.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, models.OutcomeHealed, outcome.Status)
	assert.Empty(t, outcome.Screenshot)
	assert.Equal(t, "Clicked via text: Sign In. Screenshot: ", lastEvent(t, f.session).Details)
}

func TestClick_InvalidTarget(t *testing.T) {
	f := newFixture(t, oracle.None{})

	outcome := f.engine.Click(context.Background(), models.InteractionTarget{Locator: "#play"})

	assert.Equal(t, models.OutcomeFail, outcome.Status)
	require.Error(t, outcome.Err)
	assert.Equal(t, 1, f.session.Snapshot().Failures)
	assert.Empty(t, f.page.Clicks)
}

func TestEngine_CounterInvariants(t *testing.T) {
	f := newFixture(t, oracle.None{})
	f.page.SetVisible(true, "#play")
	f.markMatchVisible(t, "Sign In")
	ctx := context.Background()

	f.engine.AttemptInteraction(ctx, "#play", "Play")
	f.engine.AttemptInteraction(ctx, "#msg-btn-login", "Sign In")
	f.engine.AttemptInteraction(ctx, "#missing", "Nope")
	f.engine.Click(ctx, models.InteractionTarget{Locator: "#play", Description: "Play"})

	r := f.session.Snapshot()
	assert.Equal(t, 4, r.TestsRun)
	assert.Equal(t, r.TestsRun, r.Passes+r.Failures)
	assert.LessOrEqual(t, r.HealedCount, r.Passes)
	assert.Equal(t, 1, r.HealedCount)
}
