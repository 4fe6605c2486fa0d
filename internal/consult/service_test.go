package consult_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/skinconsult/internal/catalog/catalogtest"
	"github.com/ashureev/skinconsult/internal/consult"
	"github.com/ashureev/skinconsult/internal/dialogue"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/llm"
	"github.com/ashureev/skinconsult/internal/metrics"
	"github.com/ashureev/skinconsult/internal/session"
	"github.com/ashureev/skinconsult/internal/store"
	"github.com/ashureev/skinconsult/internal/validation"
)

type captureSink struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
}

func (c *captureSink) Publish(_ context.Context, snap domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
	return nil
}

type fixture struct {
	repo   *store.SQLiteStore
	sink   *captureSink
	engine *dialogue.Engine
	logger *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "consult.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := catalogtest.Index()
	v := validation.New(idx, validation.Config{
		Domain:   catalogtest.Domain,
		Brand:    "DermaLab",
		Denylist: validation.DefaultDenylist,
	})
	var c llm.Completer = llm.Unavailable{}
	engine := dialogue.NewEngine(dialogue.Deps{
		Catalog:   idx,
		Completer: c,
		Repairer:  validation.NewRepairer(v, c, metrics.Nop{}, logger),
		Resolver:  dialogue.NewResolver(catalogtest.Domain),
		Logger:    logger,
	}, dialogue.Config{BrandName: "DermaLab", ShopURL: catalogtest.Domain + "/", TurnTimeout: 5 * time.Second})

	return &fixture{repo: repo, sink: &captureSink{}, engine: engine, logger: logger}
}

// service builds a fresh registry over the same store, as after a restart.
func (f *fixture) service() *consult.Service {
	return consult.New(consult.Deps{
		Engine:    f.engine,
		Sessions:  session.NewRegistry(f.repo, time.Hour, nil, f.logger),
		Repo:      f.repo,
		Snapshots: f.sink,
		Logger:    f.logger,
	})
}

func send(t *testing.T, svc *consult.Service, id, text string) dialogue.Reply {
	t.Helper()
	r, err := svc.SendMessage(context.Background(), id, dialogue.Input{Text: text})
	require.NoError(t, err)
	return r
}

func TestConsultationLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service()

	started, err := svc.StartSession(ctx, "  Giulia ")
	require.NoError(t, err)
	require.NotEmpty(t, started.SessionID)
	assert.Contains(t, started.Reply.Text, "Ciao Giulia!")

	r := send(t, svc, started.SessionID, "la mia pelle ha bisogno di aiuto")
	assert.Equal(t, domain.StepAwaitingSkinType, r.Step)
	assert.Equal(t, dialogue.SkinTypeChoices, r.Choices)

	r = send(t, svc, started.SessionID, "Mista")
	assert.Equal(t, domain.StepAwaitingAge, r.Step)

	// A second service over the same store rebuilds the session.
	restarted := f.service()
	r = send(t, restarted, started.SessionID, "26-35")
	assert.Equal(t, domain.StepAwaitingProblem, r.Step)
	assert.Equal(t, dialogue.ProblemChoices, r.Choices)

	rec, err := f.repo.GetSession(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepAwaitingProblem, rec.Step)
	assert.Equal(t, "Mista", rec.Answers.SkinType)
	assert.Equal(t, "26-35", rec.Answers.Age)
	assert.True(t, rec.StructuredFlowActive)

	history, err := restarted.History(ctx, started.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 7)
	assert.Equal(t, domain.RoleAssistant, history[0].Role)
	for i, m := range history[1:] {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i+1)
	}
	assert.Equal(t, "26-35", history[5].Content)
	assert.Equal(t, string(domain.StepAwaitingProblem), history[6].Metadata["step"])

	snap, err := restarted.EndSession(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Giulia", snap.UserName)
	assert.Equal(t, "Mista", snap.Answers.SkinType)
	assert.Len(t, snap.Transcript, 7)
	require.Len(t, f.sink.snaps, 1)
	assert.Equal(t, started.SessionID, f.sink.snaps[0].SessionID)

	_, err = restarted.SendMessage(ctx, started.SessionID, dialogue.Input{Text: "ciao"})
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = f.service().SendMessage(ctx, started.SessionID, dialogue.Input{Text: "ciao"})
	assert.ErrorIs(t, err, session.ErrNotFound, "ended sessions are not rehydrated")
	_, err = restarted.EndSession(ctx, started.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	history, err = restarted.History(ctx, started.SessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	svc := newFixture(t).service()

	_, err := svc.SendMessage(ctx, "nope", dialogue.Input{Text: "ciao"})
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = svc.History(ctx, "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = svc.EndSession(ctx, "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestConcurrentMessagesAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service()

	started, err := svc.StartSession(ctx, "Marco")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, started.SessionID, dialogue.Input{Text: "grazie"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := svc.History(ctx, started.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 17)
	for i := 1; i < len(history); i += 2 {
		assert.Equal(t, domain.RoleUser, history[i].Role)
		assert.Equal(t, domain.RoleAssistant, history[i+1].Role)
	}
}
