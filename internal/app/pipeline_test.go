package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
)

// echoClassifier answers one label per text, optionally after a gate opens.
type echoClassifier struct {
	label   string
	delay   time.Duration
	gate    chan struct{}
	fail    error
	calls   atomic.Int32
	current atomic.Int32
	peak    atomic.Int32
}

func (c *echoClassifier) Classify(ctx context.Context, req ports.ClassifyRequest) ([]byte, error) {
	c.calls.Add(1)
	n := c.current.Add(1)
	defer c.current.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.fail != nil {
		return nil, c.fail
	}
	lines := make([]string, len(req.Texts))
	for i := range lines {
		lines[i] = c.label
	}
	return []byte(fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, strings.Join(lines, "\n"))), nil
}

type recordingApplier struct {
	mu      sync.Mutex
	applied map[string][]domain.Label
	order   []string
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{applied: map[string][]domain.Label{}}
}

func (r *recordingApplier) Apply(it domain.Item, label domain.Label) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[it.Text] = append(r.applied[it.Text], label)
	r.order = append(r.order, it.Text)
}

func (r *recordingApplier) snapshot() map[string][]domain.Label {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]domain.Label, len(r.applied))
	for k, v := range r.applied {
		out[k] = append([]domain.Label(nil), v...)
	}
	return out
}

type staticTitle string

func (s staticTitle) Title() string { return string(s) }

func testConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize:      5,
		BatchTimeout:   20 * time.Millisecond,
		MaxConcurrent:  2,
		MaxQueueLength: 0,
		Labels:         []string{"normal", "spam", "unclassified"},
		Policy:         domain.NewLabelPolicy([]string{"normal", "unclassified"}, "unclassified", false),
	}
}

func startPipeline(t *testing.T, cfg PipelineConfig, c ports.Classifier, a ports.ResultApplier) (*Pipeline, context.CancelFunc, <-chan error) {
	t.Helper()
	p, err := NewPipeline(cfg, Dependencies{Classifier: c, Applier: a, Titles: staticTitle("video")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	t.Cleanup(cancel)
	return p, cancel, errCh
}

func submitN(t *testing.T, p *Pipeline, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(item(fmt.Sprintf("h%d", i), fmt.Sprintf("text %d", i))))
	}
}

func drain(t *testing.T, p *Pipeline, errCh <-chan error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
	require.NoError(t, <-errCh)
}

func assertEachLabeledOnce(t *testing.T, applied map[string][]domain.Label, n int, want domain.Label) {
	t.Helper()
	require.Len(t, applied, n)
	for text, got := range applied {
		assert.Equal(t, []domain.Label{want}, got, "item %q", text)
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	cfg := testConfig()
	_, err := NewPipeline(cfg, Dependencies{Applier: newRecordingApplier()})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewPipeline(cfg, Dependencies{Classifier: &echoClassifier{}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	cfg.MaxConcurrent = 0
	_, err = NewPipeline(cfg, Dependencies{Classifier: &echoClassifier{}, Applier: newRecordingApplier()})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestPipeline_ClassifiesEveryItemOnce(t *testing.T) {
	c := &echoClassifier{label: "normal"}
	a := newRecordingApplier()
	cfg := testConfig()
	cfg.BatchTimeout = time.Hour
	p, _, errCh := startPipeline(t, cfg, c, a)

	submitN(t, p, 23)
	drain(t, p, errCh)

	assertEachLabeledOnce(t, a.snapshot(), 23, "normal")
	assert.Equal(t, int32(5), c.calls.Load(), "four full batches and one partial")
}

func TestPipeline_TimerFlushesPartialBatch(t *testing.T) {
	c := &echoClassifier{label: "spam"}
	a := newRecordingApplier()
	p, _, errCh := startPipeline(t, testConfig(), c, a)

	submitN(t, p, 2)
	require.Eventually(t, func() bool { return len(a.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)

	drain(t, p, errCh)
	assertEachLabeledOnce(t, a.snapshot(), 2, "spam")
}

func TestPipeline_RespectsConcurrencyLimit(t *testing.T) {
	c := &echoClassifier{label: "normal", delay: 5 * time.Millisecond}
	a := newRecordingApplier()
	cfg := testConfig()
	cfg.MaxConcurrent = 3
	p, _, errCh := startPipeline(t, cfg, c, a)

	submitN(t, p, 200)
	drain(t, p, errCh)

	assert.LessOrEqual(t, c.peak.Load(), int32(3))
	assertEachLabeledOnce(t, a.snapshot(), 200, "normal")
}

func TestPipeline_TransportErrorAppliesFallback(t *testing.T) {
	c := &echoClassifier{fail: errors.New("connection refused")}
	a := newRecordingApplier()
	p, _, errCh := startPipeline(t, testConfig(), c, a)

	submitN(t, p, 7)
	drain(t, p, errCh)

	assertEachLabeledOnce(t, a.snapshot(), 7, "unclassified")
}

func TestPipeline_OverflowEvictsOldestBatches(t *testing.T) {
	c := &echoClassifier{label: "normal", gate: make(chan struct{})}
	a := newRecordingApplier()
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxConcurrent = 1
	cfg.MaxQueueLength = 2
	p, _, errCh := startPipeline(t, cfg, c, a)

	submitN(t, p, 6)
	stats, err := p.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InFlight)
	assert.Equal(t, 2, stats.Queued)

	applied := a.snapshot()
	assert.Equal(t, map[string][]domain.Label{
		"text 1": {"unclassified"},
		"text 2": {"unclassified"},
		"text 3": {"unclassified"},
	}, applied)

	close(c.gate)
	drain(t, p, errCh)

	applied = a.snapshot()
	require.Len(t, applied, 6)
	for _, text := range []string{"text 0", "text 4", "text 5"} {
		assert.Equal(t, []domain.Label{"normal"}, applied[text])
	}
}

func TestPipeline_CancelResolvesEverything(t *testing.T) {
	c := &echoClassifier{label: "normal", gate: make(chan struct{})}
	a := newRecordingApplier()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	p, cancel, errCh := startPipeline(t, cfg, c, a)

	submitN(t, p, 12) // two full batches, one in the buffer
	_, err := p.Stats(context.Background())
	require.NoError(t, err)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assertEachLabeledOnce(t, a.snapshot(), 12, "unclassified")
	assert.ErrorIs(t, p.Submit(item("late", "late")), domain.ErrClosed)
	_, err = p.Stats(context.Background())
	assert.ErrorIs(t, err, domain.ErrClosed)
}

func TestPipeline_RejectsAfterDrainStarts(t *testing.T) {
	c := &echoClassifier{label: "normal", gate: make(chan struct{})}
	a := newRecordingApplier()
	p, _, errCh := startPipeline(t, testConfig(), c, a)

	submitN(t, p, 3)
	drained := make(chan error, 1)
	go func() { drained <- p.Drain(context.Background()) }()

	require.Eventually(t, func() bool {
		s, err := p.Stats(context.Background())
		return err == nil && s.Draining
	}, 2*time.Second, 5*time.Millisecond)
	_ = p.Submit(item("late", "late"))

	close(c.gate)
	require.NoError(t, <-drained)
	require.NoError(t, <-errCh)

	applied := a.snapshot()
	assert.Len(t, applied, 3)
	assert.NotContains(t, applied, "late")
}

func TestPipeline_ManualFlush(t *testing.T) {
	c := &echoClassifier{label: "normal"}
	a := newRecordingApplier()
	cfg := testConfig()
	cfg.BatchTimeout = time.Hour
	p, _, errCh := startPipeline(t, cfg, c, a)

	submitN(t, p, 3)
	require.NoError(t, p.Flush())
	require.Eventually(t, func() bool { return len(a.snapshot()) == 3 }, 2*time.Second, 5*time.Millisecond)

	drain(t, p, errCh)
}

func TestPipeline_ApplierPanicIsContained(t *testing.T) {
	c := &echoClassifier{label: "normal"}
	var calls atomic.Int32
	a := ports.ApplierFunc(func(it domain.Item, _ domain.Label) {
		calls.Add(1)
		if it.Text == "text 1" {
			panic("boom")
		}
	})
	p, _, errCh := startPipeline(t, testConfig(), c, a)

	submitN(t, p, 5)
	drain(t, p, errCh)

	assert.Equal(t, int32(5), calls.Load())
}

func TestPipeline_RunTwice(t *testing.T) {
	p, _, errCh := startPipeline(t, testConfig(), &echoClassifier{label: "normal"}, newRecordingApplier())
	drain(t, p, errCh)

	assert.ErrorIs(t, p.Run(context.Background()), domain.ErrAlreadyRunning)
}

type admissionRecorder struct {
	noopEmitter
	mu   sync.Mutex
	seen []Admission
}

func (r *admissionRecorder) OnItemSubmitted(a Admission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, a)
}

func TestPipeline_SealSettlesPendingPosts(t *testing.T) {
	rec := &admissionRecorder{}
	p, err := NewPipeline(testConfig(), Dependencies{
		Classifier: &echoClassifier{label: "normal"},
		Applier:    newRecordingApplier(),
		Emitter:    rec,
	})
	require.NoError(t, err)

	// Posted while the loop is not reading, as happens when Run is in its
	// final wait.
	require.NoError(t, p.Submit(item("a", "in the mailbox")))

	p.seal()

	assert.ErrorIs(t, p.Submit(item("b", "after seal")), domain.ErrClosed)
	assert.ErrorIs(t, p.Flush(), domain.ErrClosed)
	assert.Equal(t, 0, p.intake.Buffered())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []Admission{RejectedClosed}, rec.seen)
}
