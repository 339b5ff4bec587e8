package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/semreg"
)

// CheckPolicy compiles p and evaluates each verb against it. It returns an
// error when any verb is denied so scripts can gate on the exit code.
func CheckPolicy(p semreg.Policy, verbs []string, w io.Writer) error {
	snap, err := semreg.Compile(p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "mode:        %s\n", snap.Mode())
	fmt.Fprintf(w, "fingerprint: %s\n", snap.Fingerprint())
	if len(verbs) == 0 {
		return nil
	}

	fqns := make([]domain.FQN, len(verbs))
	for i, v := range verbs {
		fqns[i] = domain.FQN(v)
	}
	ev := snap.Evaluate(fqns)
	for _, v := range ev.Allowed {
		fmt.Fprintf(w, "allow  %s\n", v)
	}
	for _, v := range ev.Denied {
		fmt.Fprintf(w, "deny   %s (%s)\n", v, ev.Reasons[v])
	}
	if len(ev.Denied) > 0 {
		return fmt.Errorf("%d of %d verbs denied", len(ev.Denied), len(domain.UniqueFQNs(fqns)))
	}
	return nil
}
