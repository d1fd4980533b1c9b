package pipeline

import (
	"context"

	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
)

// MergeCoordinator invokes the destination merge procedure that reconciles
// staged rows into the final table. The procedure itself lives in the
// destination and must tolerate duplicate staged rows; the coordinator only
// decides when it runs.
type MergeCoordinator struct {
	Procedure string
}

// Enabled reports whether a merge procedure is configured.
func (m MergeCoordinator) Enabled() bool {
	return m.Procedure != ""
}

// Merge calls the merge procedure. Without a configured procedure it is a no-op.
func (m MergeCoordinator) Merge(ctx context.Context, conn core.Conn) error {
	if !m.Enabled() {
		return nil
	}
	if err := conn.Call(ctx, m.Procedure); err != nil {
		return errors.Wrap(err, errors.ErrorTypeMergeFailed, "merge procedure call failed").
			WithDetail("procedure", m.Procedure)
	}
	return nil
}
