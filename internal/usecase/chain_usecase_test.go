package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
)

// fakeExtractor serves canned pages per URL.
type fakeExtractor struct {
	pages map[string]*entity.ExtractedPage
	err   error
	calls []string
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (*entity.ExtractedPage, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: no page for %s", repository.ErrNavigationFailed, url)
	}
	return page, nil
}

// scriptedLLM pops replies in order and records every prompt batch.
type scriptedLLM struct {
	replies []string
	batches [][]entity.ChatMessage
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []entity.ChatMessage) (string, error) {
	s.batches = append(s.batches, messages)
	if len(s.replies) == 0 {
		return "", errors.New("scripted llm exhausted")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// scriptedSubmitter pops verdicts in order and records submissions.
type scriptedSubmitter struct {
	verdicts []*entity.Verdict
	urls     []string
	payloads []entity.AnswerPayload
}

func (s *scriptedSubmitter) Submit(ctx context.Context, url string, payload entity.AnswerPayload) (*entity.Verdict, error) {
	s.urls = append(s.urls, url)
	s.payloads = append(s.payloads, payload)
	if len(s.verdicts) == 0 {
		return nil, errors.New("scripted submitter exhausted")
	}
	v := s.verdicts[0]
	s.verdicts = s.verdicts[1:]
	return v, nil
}

// recordingStatusRepo captures every published run state.
type recordingStatusRepo struct {
	mu     sync.Mutex
	states []string
}

func (r *recordingStatusRepo) Set(ctx context.Context, status *entity.RunStatus, expiry time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, status.State)
	return nil
}

func (r *recordingStatusRepo) Get(ctx context.Context, startURL string) (*entity.RunStatus, error) {
	return nil, repository.ErrRunNotFound
}

func questionPage(url string) *entity.ExtractedPage {
	return &entity.ExtractedPage{
		SourceURL:   url,
		VisibleText: "sum of column A",
		ProvidedData: entity.ProvidedData{
			Kind: entity.ProvidedDataTabular,
			Rows: []map[string]string{{"A": "1"}, {"A": "41"}},
		},
	}
}

func descriptorReply(submitURL string) string {
	return fmt.Sprintf(`{"submit_url": %q, "question_text": "sum of column A", "payload_template": {"answer": null}}`, submitURL)
}

func defaultChainConfig() ChainConfig {
	return ChainConfig{
		MaxIterations:    10,
		MaxChainDuration: time.Minute,
		QuestionPause:    0,
		StatusExpiry:     time.Hour,
	}
}

func newTestRunner(ex repository.PageExtractor, llm repository.ChatCompleter, sub repository.AnswerSubmitter, status repository.RunStatusRepository, cfg ChainConfig) ChainRunner {
	return NewChainRunner(ex, NewStructurer(llm), NewSolver(llm, true), sub, status, nil, cfg)
}

func sampleTask() entity.QuizTask {
	return entity.QuizTask{
		Email:    "user@test.dev",
		Secret:   "s3cret",
		StartURL: "http://quiz.test/q1",
	}
}

func TestChainCompletesAfterSingleQuestion(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
	}}
	llm := &scriptedLLM{replies: []string{
		descriptorReply("http://quiz.test/submit"),
		`{"answer": 42}`,
	}}
	submitter := &scriptedSubmitter{verdicts: []*entity.Verdict{
		{Correct: true},
	}}
	status := &recordingStatusRepo{}

	err := newTestRunner(extractor, llm, submitter, status, defaultChainConfig()).Run(context.Background(), sampleTask())
	require.NoError(t, err)

	assert.Equal(t, []string{"http://quiz.test/q1"}, extractor.calls)
	require.Len(t, submitter.urls, 1)
	assert.Equal(t, "http://quiz.test/submit", submitter.urls[0])
	assert.Equal(t, float64(42), submitter.payloads[0]["answer"])
	assert.Equal(t, entity.RunStateCompleted, status.states[len(status.states)-1])
}

func TestChainAdvancesAfterFeedbackRetry(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
		"http://quiz.test/q2": questionPage("http://quiz.test/q2"),
	}}
	llm := &scriptedLLM{replies: []string{
		descriptorReply("http://quiz.test/submit"), // q1 structure
		`{"answer": 41}`,                           // q1 solve
		`{"answer": 42}`,                           // q1 solve with feedback
		descriptorReply("http://quiz.test/submit"), // q2 structure
		`{"answer": 7}`,                            // q2 solve
	}}
	submitter := &scriptedSubmitter{verdicts: []*entity.Verdict{
		{Correct: false, Reason: "wrong format"},
		{Correct: true, NextURL: "http://quiz.test/q2"},
		{Correct: true},
	}}
	status := &recordingStatusRepo{}

	err := newTestRunner(extractor, llm, submitter, status, defaultChainConfig()).Run(context.Background(), sampleTask())
	require.NoError(t, err)

	assert.Equal(t, []string{"http://quiz.test/q1", "http://quiz.test/q2"}, extractor.calls)
	assert.Len(t, submitter.urls, 3)

	// The retry prompt carried the scoring endpoint's reason.
	retryPrompt := llm.batches[2][1].Content
	assert.Contains(t, retryPrompt, "wrong format")
	assert.Equal(t, entity.RunStateCompleted, status.states[len(status.states)-1])
}

func TestChainCapsSubmissionsPerQuestion(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
	}}
	llm := &scriptedLLM{replies: []string{
		descriptorReply("http://quiz.test/submit"),
		`{"answer": 1}`,
		`{"answer": 2}`,
		// No further solve replies: the cap must stop before a third attempt.
	}}
	submitter := &scriptedSubmitter{verdicts: []*entity.Verdict{
		{Correct: false, Reason: "still wrong"},
		{Correct: false, Reason: "still wrong"},
	}}

	err := newTestRunner(extractor, llm, submitter, &recordingStatusRepo{}, defaultChainConfig()).Run(context.Background(), sampleTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer rejected")
	assert.Len(t, submitter.urls, 2, "at most two submission attempts per question")
}

func TestChainDepthBudgetPreemptsNextQuestion(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
		"http://quiz.test/q2": questionPage("http://quiz.test/q2"),
	}}
	llm := &scriptedLLM{replies: []string{
		descriptorReply("http://quiz.test/submit"),
		`{"answer": 42}`,
	}}
	submitter := &scriptedSubmitter{verdicts: []*entity.Verdict{
		{Correct: true, NextURL: "http://quiz.test/q2"},
	}}

	cfg := defaultChainConfig()
	cfg.MaxIterations = 1

	err := newTestRunner(extractor, llm, submitter, &recordingStatusRepo{}, cfg).Run(context.Background(), sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	// The depth check fires before any network call for question 2.
	assert.Equal(t, []string{"http://quiz.test/q1"}, extractor.calls)
}

func TestChainTimeBudgetPreemptsNetworkCalls(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
	}}
	llm := &scriptedLLM{}
	submitter := &scriptedSubmitter{}

	cfg := defaultChainConfig()
	cfg.MaxChainDuration = time.Minute

	runner := NewChainRunner(extractor, NewStructurer(llm), NewSolver(llm, true), submitter, nil, nil, cfg).(*chainRunnerUseCase)
	base := time.Now()
	calls := 0
	runner.now = func() time.Time {
		calls++
		if calls == 1 {
			return base // chain start
		}
		return base.Add(2 * time.Minute) // every later look at the clock
	}

	err := runner.Run(context.Background(), sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Empty(t, extractor.calls, "no network call after the time budget expired")
	assert.Empty(t, submitter.urls)
}

func TestChainFollowsNextOnIncorrectWhenEnabled(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
		"http://quiz.test/q2": questionPage("http://quiz.test/q2"),
	}}
	llm := &scriptedLLM{replies: []string{
		descriptorReply("http://quiz.test/submit"),
		`{"answer": 1}`,
		`{"answer": 2}`,
		descriptorReply("http://quiz.test/submit"),
		`{"answer": 3}`,
	}}
	submitter := &scriptedSubmitter{verdicts: []*entity.Verdict{
		{Correct: false, Reason: "nope"},
		{Correct: false, Reason: "nope", NextURL: "http://quiz.test/q2"},
		{Correct: true},
	}}

	cfg := defaultChainConfig()
	cfg.FollowNextOnIncorrect = true

	err := newTestRunner(extractor, llm, submitter, &recordingStatusRepo{}, cfg).Run(context.Background(), sampleTask())
	require.NoError(t, err)
	assert.Equal(t, []string{"http://quiz.test/q1", "http://quiz.test/q2"}, extractor.calls)
}

func TestChainFailsOnExtractionError(t *testing.T) {
	extractor := &fakeExtractor{err: fmt.Errorf("%w: browser crashed", repository.ErrNavigationFailed)}
	status := &recordingStatusRepo{}

	err := newTestRunner(extractor, &scriptedLLM{}, &scriptedSubmitter{}, status, defaultChainConfig()).Run(context.Background(), sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNavigationFailed)
	assert.Equal(t, entity.RunStateFailed, status.states[len(status.states)-1])
}

func TestChainFailsOnBrowserLaunchError(t *testing.T) {
	extractor := &fakeExtractor{err: fmt.Errorf("%w: chrome binary missing", repository.ErrBrowserLaunch)}
	status := &recordingStatusRepo{}

	err := newTestRunner(extractor, &scriptedLLM{}, &scriptedSubmitter{}, status, defaultChainConfig()).Run(context.Background(), sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrBrowserLaunch)
	assert.Equal(t, entity.RunStateFailed, status.states[len(status.states)-1])
}

func TestFailureLabelClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"budget", fmt.Errorf("chain: %w", ErrBudgetExceeded), "budget"},
		{"browser launch", fmt.Errorf("chain: %w", repository.ErrBrowserLaunch), "extraction"},
		{"navigation", fmt.Errorf("chain: %w", repository.ErrNavigationFailed), "extraction"},
		{"dom extraction", fmt.Errorf("chain: %w", repository.ErrExtractionFailed), "extraction"},
		{"structuring", fmt.Errorf("chain: %w", ErrStructuringFailed), "structuring"},
		{"solving", fmt.Errorf("chain: %w", ErrSolvingFailed), "solving"},
		{"unsafe url", fmt.Errorf("chain: %w", repository.ErrUnsafeSubmitURL), "unsafe_url"},
		{"other", errors.New("connection reset"), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureLabel(tt.err))
		})
	}
}

func TestChainFailsOnStructuringError(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
	}}
	llm := &scriptedLLM{replies: []string{"not a json object"}}
	submitter := &scriptedSubmitter{}

	err := newTestRunner(extractor, llm, submitter, &recordingStatusRepo{}, defaultChainConfig()).Run(context.Background(), sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructuringFailed)
	assert.Empty(t, submitter.urls, "no submission after a structuring failure")
}

func TestChainInjectsSecretWhenTemplateDemandsIt(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
	}}
	llm := &scriptedLLM{replies: []string{
		`{"submit_url": "http://quiz.test/submit", "payload_template": {"answer": null, "secret": null, "email": null}}`,
		`{"answer": 42}`,
	}}
	submitter := &scriptedSubmitter{verdicts: []*entity.Verdict{
		{Correct: true},
	}}

	err := newTestRunner(extractor, llm, submitter, &recordingStatusRepo{}, defaultChainConfig()).Run(context.Background(), sampleTask())
	require.NoError(t, err)

	require.Len(t, submitter.payloads, 1)
	assert.Equal(t, "s3cret", submitter.payloads[0]["secret"])
	assert.Equal(t, "user@test.dev", submitter.payloads[0]["email"])

	// The secret never reaches the language model.
	for _, batch := range llm.batches {
		for _, msg := range batch {
			assert.NotContains(t, msg.Content, "s3cret")
		}
	}
}

func TestChainHonorsContextCancellation(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string]*entity.ExtractedPage{
		"http://quiz.test/q1": questionPage("http://quiz.test/q1"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestRunner(extractor, &scriptedLLM{}, &scriptedSubmitter{}, &recordingStatusRepo{}, defaultChainConfig()).Run(ctx, sampleTask())
	require.Error(t, err)
	assert.Empty(t, extractor.calls)
}
