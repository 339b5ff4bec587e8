package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunChoiceStoreContract runs a suite of tests to verify that a ChoiceStore implementation
// adheres to the defined interface contract.
func RunChoiceStoreContract(t *testing.T, store ChoiceStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newChoice := func(id string) *domain.PendingChoice {
		return domain.NewPendingChoice(id, "trace-"+id, "send report",
			map[string]any{"tenant": "acme"},
			[]domain.CandidateVerb{
				{Verb: "report.send.v1", Label: "Send report (v1)"},
				{Verb: "report.send.v2", Label: "Send report (v2)"},
			},
			time.Now().UTC().Truncate(time.Second),
		)
	}

	t.Run("Save and Load", func(t *testing.T) {
		choice := newChoice("choice-1")

		err := store.Save(ctx, sessionID, choice)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, choice.ID, loaded.ID)
		assert.Equal(t, choice.Options, loaded.Options)
		assert.Equal(t, choice.Utterance, loaded.Utterance)
		assert.Equal(t, choice.TraceID, loaded.TraceID)
		assert.Equal(t, "acme", loaded.Scope["tenant"])
		assert.True(t, choice.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Options are isolated from callers", func(t *testing.T) {
		choice := newChoice("choice-iso")
		require.NoError(t, store.Save(ctx, sessionID, choice))

		choice.Options[0].Verb = "tampered.verb"

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.FQN("report.send.v1"), loaded.Options[0].Verb)

		loaded.Options[1].Verb = "tampered.again"
		reloaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.FQN("report.send.v2"), reloaded.Options[1].Verb)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, newChoice("first")))
		require.NoError(t, store.Save(ctx, sessionID, newChoice("second")))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded.ID)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newChoice("to-delete"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newChoice("a"))
		_ = store.Save(ctx, id2, newChoice("b"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
