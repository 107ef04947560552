package binding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/promark/verify-api/internal/domain"
	"github.com/promark/verify-api/internal/infrastructure/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// fakeSessionStore is a single-session in-memory store. State-machine tests
// need to observe the persisted stage between calls, which is awkward with
// expectation mocks.
type fakeSessionStore struct {
	mu   sync.Mutex
	sess *domain.VerificationSession
}

func (f *fakeSessionStore) Get(_ context.Context, sessionID string) (*domain.VerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil || f.sess.SessionID != sessionID {
		return nil, domain.ErrNotFound
	}
	return f.sess, nil
}

func (f *fakeSessionStore) Put(_ context.Context, s *domain.VerificationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = s
	return nil
}

type fakeEvidenceStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeEvidenceStore() *fakeEvidenceStore {
	return &fakeEvidenceStore{objects: make(map[string][]byte)}
}

func (f *fakeEvidenceStore) Upload(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "s3://test/" + key, nil
}

func (f *fakeEvidenceStore) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (f *fakeEvidenceStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

// flakySessionStore persists deep snapshots so a rejected Put really leaves
// the stored session untouched, and fails one Put by 1-based call index.
type flakySessionStore struct {
	mu      sync.Mutex
	sess    *domain.VerificationSession
	puts    int
	failPut int
}

func sessionSnapshot(s *domain.VerificationSession) *domain.VerificationSession {
	c := *s
	if s.Binding != nil {
		b := *s.Binding
		c.Binding = &b
	}
	return &c
}

func (f *flakySessionStore) Get(_ context.Context, sessionID string) (*domain.VerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil || f.sess.SessionID != sessionID {
		return nil, domain.ErrNotFound
	}
	return sessionSnapshot(f.sess), nil
}

func (f *flakySessionStore) Put(_ context.Context, s *domain.VerificationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.puts == f.failPut {
		return fmt.Errorf("write throttled")
	}
	f.sess = sessionSnapshot(s)
	return nil
}

// stubClassifier returns a canned verdict or error. When block is non-nil the
// call waits until the channel closes or the context ends.
type stubClassifier struct {
	mu      sync.Mutex
	verdict *domain.AuditVerdict
	err     error
	block   chan struct{}
	calls   int
}

func (c *stubClassifier) Classify(ctx context.Context, _ []byte, _, _, _ string) (*domain.AuditVerdict, error) {
	c.mu.Lock()
	c.calls++
	block := c.block
	c.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	v := *c.verdict
	return &v, nil
}

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Publish(_ context.Context, eventType string, _ *domain.VerificationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

// --- builders ---

func acceptVerdict() *domain.AuditVerdict {
	return &domain.AuditVerdict{
		HandleMatches:   true,
		TokenMatches:    true,
		IsAuthentic:     true,
		ExtractedHandle: "@demo",
	}
}

func emailVerifiedSession() *domain.VerificationSession {
	return &domain.VerificationSession{
		SessionID:    "sess1",
		SubjectEmail: "user@x.com",
		Path:         domain.PathCreator,
		Stage:        domain.StageEmailVerified,
	}
}

type fixture struct {
	svc      Service
	store    *fakeSessionStore
	evidence *fakeEvidenceStore
	oracle   *stubClassifier
	events   *fakeEvents
}

func newFixture(sess *domain.VerificationSession, oracle *stubClassifier, maxAudits int) *fixture {
	f := &fixture{
		store:    &fakeSessionStore{sess: sess},
		evidence: newFakeEvidenceStore(),
		oracle:   oracle,
		events:   &fakeEvents{},
	}
	f.svc = NewService(ServiceDeps{
		SessionRepo:      f.store,
		Evidence:         f.evidence,
		Oracle:           oracle,
		Events:           f.events,
		AuditTimeout:     2 * time.Second,
		AuditMaxAttempts: maxAudits,
	})
	return f
}

func (f *fixture) handshake(t *testing.T, handle, wallet string) *domain.VerificationSession {
	t.Helper()
	sess, err := f.svc.RequestHandshake(context.Background(), "sess1", HandshakeRequest{Handle: handle, WalletAddress: wallet})
	require.NoError(t, err)
	return sess
}

func (f *fixture) submitEvidence(t *testing.T) *domain.VerificationSession {
	t.Helper()
	sess, err := f.svc.SubmitEvidence(context.Background(), "sess1", bytes.NewReader([]byte("fake-png")), "image/png", 8)
	require.NoError(t, err)
	return sess
}

// --- RequestHandshake ---

func TestRequestHandshake_IssuesToken(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: acceptVerdict()}, 0)

	sess := f.handshake(t, "@demo", "Wa11etXYZ9")

	require.NotNil(t, sess.Binding)
	assert.Regexp(t, `^PRM-DEMO-XYZ9-\d{4}$`, sess.Binding.Token)
	assert.Equal(t, "@demo", sess.Binding.Handle)
	assert.Equal(t, domain.BindingHandshakeIssued, sess.Binding.Stage)
	assert.Equal(t, domain.StageSocialPending, sess.Stage)
}

func TestRequestHandshake_ReissueReplacesToken(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: acceptVerdict()}, 0)

	// Random suffixes collide 1 in 10^4 per pair; a handful of draws makes a
	// full run of collisions vanishingly unlikely.
	tokens := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		sess := f.handshake(t, "@demo", "Wa11etXYZ9")
		tokens[sess.Binding.Token] = struct{}{}
	}
	assert.Greater(t, len(tokens), 1)
}

func TestRequestHandshake_DiscardsPriorEvidenceAndVerdict(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: acceptVerdict()}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	sess := f.handshake(t, "@demo", "Wa11etXYZ9")

	assert.Empty(t, sess.Binding.EvidenceKey)
	assert.Nil(t, sess.Binding.Verdict)
	assert.Contains(t, f.evidence.deleted, "evidence/sess1.png")
}

func TestRequestHandshake_RequiresVerifiedEmail(t *testing.T) {
	sess := emailVerifiedSession()
	sess.Stage = domain.StageUnauthenticated
	f := newFixture(sess, &stubClassifier{}, 0)

	_, err := f.svc.RequestHandshake(context.Background(), "sess1", HandshakeRequest{Handle: "@demo", WalletAddress: "w1234"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

func TestRequestHandshake_MissingWallet(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)

	_, err := f.svc.RequestHandshake(context.Background(), "sess1", HandshakeRequest{Handle: "@demo"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingPrecondition))
	assert.Nil(t, f.store.sess.Binding) // no partial state created
}

func TestRequestHandshake_BlockedWhileBound(t *testing.T) {
	sess := emailVerifiedSession()
	sess.Stage = domain.StageSocialVerified
	sess.Binding = &domain.SocialBinding{Stage: domain.BindingBound, Token: "PRM-DEMO-XYZ9-0001"}
	f := newFixture(sess, &stubClassifier{}, 0)

	_, err := f.svc.RequestHandshake(context.Background(), "sess1", HandshakeRequest{Handle: "@demo", WalletAddress: "w1234"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

// --- SubmitEvidence ---

func TestSubmitEvidence_StoresArtifact(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")

	sess := f.submitEvidence(t)

	assert.Equal(t, domain.BindingEvidenceReceived, sess.Binding.Stage)
	assert.Equal(t, "evidence/sess1.png", sess.Binding.EvidenceKey)
	assert.Equal(t, "image/png", sess.Binding.EvidenceType)
	assert.Equal(t, []byte("fake-png"), f.evidence.objects["evidence/sess1.png"])
}

func TestSubmitEvidence_WithoutHandshake(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)

	_, err := f.svc.SubmitEvidence(context.Background(), "sess1", strings.NewReader("x"), "image/png", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingPrecondition))
}

func TestSubmitEvidence_EmptyArtifact(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")

	_, err := f.svc.SubmitEvidence(context.Background(), "sess1", strings.NewReader(""), "image/png", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingPrecondition))
}

func TestSubmitEvidence_RejectsUnknownEncoding(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")

	_, err := f.svc.SubmitEvidence(context.Background(), "sess1", strings.NewReader("%PDF"), "application/pdf", 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestSubmitEvidence_ReuploadReplaces(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	sess, err := f.svc.SubmitEvidence(context.Background(), "sess1", strings.NewReader("newer"), "image/png", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.BindingEvidenceReceived, sess.Binding.Stage)
	assert.Equal(t, []byte("newer"), f.evidence.objects["evidence/sess1.png"])
}

// --- RunAudit ---

func TestRunAudit_Accept_TransitionsToBound(t *testing.T) {
	oracle := &stubClassifier{verdict: acceptVerdict()}
	f := newFixture(emailVerifiedSession(), oracle, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	report, sess, err := f.svc.RunAudit(context.Background(), "sess1")

	require.NoError(t, err)
	assert.True(t, report.Verdict.Accepted())
	assert.Equal(t, domain.BindingBound, sess.Binding.Stage)
	assert.Equal(t, domain.StageSocialVerified, sess.Stage)
	assert.Equal(t, 1, oracle.callCount())
	assert.Equal(t, []string{sns.EventSocialVerified}, f.events.events)
}

// Trace ordering is part of the contract: two fixed lines before the oracle
// resolves, then the verdict-derived lines, then the verdict itself.
func TestRunAudit_TraceLineOrder(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: acceptVerdict()}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	report, _, err := f.svc.RunAudit(context.Background(), "sess1")
	require.NoError(t, err)

	require.Len(t, report.Lines, 6)
	assert.Contains(t, report.Lines[0], "initializing")
	assert.Contains(t, report.Lines[1], "classification oracle")
	assert.Contains(t, report.Lines[2], "handle extracted")
	assert.Contains(t, report.Lines[3], "token cross-reference")
	assert.Contains(t, report.Lines[4], "authenticity check")
	assert.Contains(t, report.Lines[5], "verdict: ACCEPTED")
}

func TestRunAudit_SingleFalseRejects_PreservesToken(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.AuditVerdict)
	}{
		{"handle mismatch", func(v *domain.AuditVerdict) { v.HandleMatches = false }},
		{"token mismatch", func(v *domain.AuditVerdict) { v.TokenMatches = false }},
		{"not authentic", func(v *domain.AuditVerdict) { v.IsAuthentic = false }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := acceptVerdict()
			verdict.Reasoning = "does not check out"
			tc.mutate(verdict)

			f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: verdict}, 0)
			f.handshake(t, "@demo", "Wa11etXYZ9")
			tokenBefore := f.store.sess.Binding.Token
			f.submitEvidence(t)

			report, sess, err := f.svc.RunAudit(context.Background(), "sess1")

			require.NoError(t, err)
			assert.False(t, report.Verdict.Accepted())
			assert.Equal(t, domain.BindingHandshakeIssued, sess.Binding.Stage)
			assert.Equal(t, domain.StageSocialPending, sess.Stage)
			assert.Equal(t, tokenBefore, sess.Binding.Token)
			assert.Contains(t, report.Lines[len(report.Lines)-1], "does not check out")
			assert.Empty(t, f.events.events)
		})
	}
}

func TestRunAudit_RejectedVerdictRecordedForDiagnostics(t *testing.T) {
	verdict := acceptVerdict()
	verdict.IsAuthentic = false
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: verdict}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	_, sess, err := f.svc.RunAudit(context.Background(), "sess1")
	require.NoError(t, err)
	require.NotNil(t, sess.Binding.Verdict)
	assert.False(t, sess.Binding.Verdict.IsAuthentic)
}

func TestRunAudit_WithoutEvidence(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")

	_, _, err := f.svc.RunAudit(context.Background(), "sess1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingPrecondition))
}

func TestRunAudit_DuplicateWhileAuditing(t *testing.T) {
	oracle := &stubClassifier{verdict: acceptVerdict(), block: make(chan struct{})}
	f := newFixture(emailVerifiedSession(), oracle, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, err := f.svc.RunAudit(context.Background(), "sess1")
		assert.NoError(t, err)
	}()

	// Wait for the first audit to reach the oracle call.
	require.Eventually(t, func() bool { return oracle.callCount() == 1 }, time.Second, 5*time.Millisecond)

	_, _, err := f.svc.RunAudit(context.Background(), "sess1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))

	close(oracle.block)
	<-done
	assert.Equal(t, 1, oracle.callCount())
}

func TestRunAudit_PersistedAuditingStageRejected(t *testing.T) {
	sess := emailVerifiedSession()
	sess.Stage = domain.StageSocialPending
	sess.Binding = &domain.SocialBinding{
		Token:       "PRM-DEMO-XYZ9-0001",
		Stage:       domain.BindingAuditing,
		EvidenceKey: "evidence/sess1.png",
	}
	f := newFixture(sess, &stubClassifier{}, 0)

	_, _, err := f.svc.RunAudit(context.Background(), "sess1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

func TestRunAudit_MalformedOracle_RevertsToHandshake(t *testing.T) {
	oracle := &stubClassifier{err: fmt.Errorf("gibberish reply: %w", domain.ErrOracleMalformed)}
	f := newFixture(emailVerifiedSession(), oracle, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	_, _, err := f.svc.RunAudit(context.Background(), "sess1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOracleMalformed))
	assert.Equal(t, domain.BindingHandshakeIssued, f.store.sess.Binding.Stage)
	// Evidence survives for a retry with the same token.
	assert.Equal(t, "evidence/sess1.png", f.store.sess.Binding.EvidenceKey)
}

func TestRunAudit_Timeout_RevertsToHandshake(t *testing.T) {
	oracle := &stubClassifier{verdict: acceptVerdict(), block: make(chan struct{})}
	f := &fixture{
		store:    &fakeSessionStore{sess: emailVerifiedSession()},
		evidence: newFakeEvidenceStore(),
		oracle:   oracle,
		events:   &fakeEvents{},
	}
	f.svc = NewService(ServiceDeps{
		SessionRepo:  f.store,
		Evidence:     f.evidence,
		Oracle:       oracle,
		Events:       f.events,
		AuditTimeout: 20 * time.Millisecond,
	})
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	_, _, err := f.svc.RunAudit(context.Background(), "sess1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOracleUnavailable))
	assert.Equal(t, domain.BindingHandshakeIssued, f.store.sess.Binding.Stage)
	close(oracle.block)
}

func TestRunAudit_CallerCancellation_NotLeftAuditing(t *testing.T) {
	oracle := &stubClassifier{verdict: acceptVerdict(), block: make(chan struct{})}
	f := newFixture(emailVerifiedSession(), oracle, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := f.svc.RunAudit(ctx, "sess1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOracleUnavailable))
	assert.Equal(t, domain.BindingHandshakeIssued, f.store.sess.Binding.Stage)
	close(oracle.block)
}

// Put order under an accepted audit: handshake, evidence, auditing marker,
// result. Failing the result write must not strand the persisted marker at
// AUDITING, or every retry on the session would be rejected.
func TestRunAudit_ResultWriteFailureRevertsAuditingMarker(t *testing.T) {
	store := &flakySessionStore{sess: emailVerifiedSession(), failPut: 4}
	evidence := newFakeEvidenceStore()
	svc := NewService(ServiceDeps{
		SessionRepo:  store,
		Evidence:     evidence,
		Oracle:       &stubClassifier{verdict: acceptVerdict()},
		AuditTimeout: 2 * time.Second,
	})

	_, err := svc.RequestHandshake(context.Background(), "sess1", HandshakeRequest{Handle: "@demo", WalletAddress: "Wa11etXYZ9"})
	require.NoError(t, err)
	_, err = svc.SubmitEvidence(context.Background(), "sess1", bytes.NewReader([]byte("fake-png")), "image/png", 8)
	require.NoError(t, err)

	_, _, err = svc.RunAudit(context.Background(), "sess1")
	require.Error(t, err)
	assert.Equal(t, domain.BindingHandshakeIssued, store.sess.Binding.Stage)
	assert.Equal(t, domain.StageSocialPending, store.sess.Stage)

	// The session is not wedged: a retried audit completes.
	report, sess, err := svc.RunAudit(context.Background(), "sess1")
	require.NoError(t, err)
	assert.True(t, report.Verdict.Accepted())
	assert.Equal(t, domain.BindingBound, sess.Binding.Stage)
	assert.Equal(t, domain.StageSocialVerified, sess.Stage)
}

func TestSessionGuard_ReleasedAfterOperations(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: acceptVerdict()}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)
	_, _, err := f.svc.RunAudit(context.Background(), "sess1")
	require.NoError(t, err)

	svc := f.svc.(*service)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.inflight)
}

func TestRunAudit_AttemptCap(t *testing.T) {
	verdict := acceptVerdict()
	verdict.TokenMatches = false
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: verdict}, 2)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)

	for i := 0; i < 2; i++ {
		_, _, err := f.svc.RunAudit(context.Background(), "sess1")
		require.NoError(t, err)
	}

	_, _, err := f.svc.RunAudit(context.Background(), "sess1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuditRejected))
}

// --- Revoke ---

func TestRevoke_RoundTrip(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: acceptVerdict()}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")
	f.submitEvidence(t)
	_, _, err := f.svc.RunAudit(context.Background(), "sess1")
	require.NoError(t, err)

	sess, err := f.svc.Revoke(context.Background(), "sess1")

	require.NoError(t, err)
	assert.Nil(t, sess.Binding)
	assert.Equal(t, domain.BindingIdle, sess.BindingStage())
	assert.Equal(t, domain.StageEmailVerified, sess.Stage)
	assert.Contains(t, f.evidence.deleted, "evidence/sess1.png")
	assert.Equal(t, []string{sns.EventSocialVerified, sns.EventBindingRevoked}, f.events.events)

	// A fresh handshake after revocation issues an unrelated token.
	again := f.handshake(t, "@demo", "Wa11etXYZ9")
	assert.Regexp(t, `^PRM-DEMO-XYZ9-\d{4}$`, again.Binding.Token)
	assert.Nil(t, again.Binding.Verdict)
}

func TestRevoke_OnlyFromBound(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{}, 0)
	f.handshake(t, "@demo", "Wa11etXYZ9")

	_, err := f.svc.Revoke(context.Background(), "sess1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

// --- end to end ---

func TestVerificationScenario_EndToEnd(t *testing.T) {
	f := newFixture(emailVerifiedSession(), &stubClassifier{verdict: acceptVerdict()}, 0)

	sess := f.handshake(t, "@demo", "Wa11etXYZ9")
	assert.Regexp(t, `^PRM-DEMO-XYZ9-\d{4}$`, sess.Binding.Token)

	sess = f.submitEvidence(t)
	assert.Equal(t, domain.BindingEvidenceReceived, sess.Binding.Stage)

	report, sess, err := f.svc.RunAudit(context.Background(), "sess1")
	require.NoError(t, err)
	assert.True(t, report.Verdict.Accepted())
	assert.Equal(t, domain.BindingBound, sess.Binding.Stage)
	assert.Equal(t, domain.StageSocialVerified, sess.Stage)
}
