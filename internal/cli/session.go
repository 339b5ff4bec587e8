package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/session"
)

// ListSessions prints the sessions holding a pending choice.
func ListSessions(ctx context.Context, sessions *session.Manager, w io.Writer) error {
	ids, err := sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No pending choices.")
		return nil
	}
	fmt.Fprintln(w, "Sessions with a pending choice:")
	for _, id := range ids {
		fmt.Fprintln(w, "- "+id)
	}
	return nil
}

// InspectSession prints a session's pending choice as indented JSON.
func InspectSession(ctx context.Context, sessions *session.Manager, sessionID string, w io.Writer) error {
	choice, err := sessions.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrNoPendingChoice) {
		return fmt.Errorf("session '%s' has no pending choice", sessionID)
	}
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", sessionID, err)
	}
	data, err := json.MarshalIndent(choice, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling choice: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveSessions drops the pending choice of every given session. It reports
// each removal and returns an error if any failed.
func RemoveSessions(ctx context.Context, sessions *session.Manager, ids []string, w io.Writer) error {
	var errs []error
	for _, id := range ids {
		if err := sessions.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}
