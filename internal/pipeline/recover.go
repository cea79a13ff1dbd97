package pipeline

import (
	"context"

	"github.com/codegraphhq/codegraph/internal/model"
)

// RecoverResult reports one recovery pass.
type RecoverResult struct {
	// FilesRecovered is the number of errored files requeued for retry.
	FilesRecovered int `json:"filesRecovered"`
	// FilesInError is the number of errored files past their retry budget.
	FilesInError int `json:"filesInError"`
	// StatesReset is the number of files found stuck in an intermediate
	// state and reset to discovered.
	StatesReset int `json:"statesReset"`
}

// Recover restores a clean start condition after a crash: files stuck in
// any intermediate state go back to discovered, errored files under the
// retry budget are requeued. The next ProcessDiscovered re-establishes the
// graph invariants naturally.
func (p *Processor) Recover(ctx context.Context, projectID string) (RecoverResult, error) {
	var res RecoverResult

	for _, s := range model.IntermediateStates {
		files, err := p.states.FilesInState(ctx, projectID, s)
		if err != nil {
			return res, err
		}
		if len(files) == 0 {
			continue
		}
		uuids := make([]string, len(files))
		for i, f := range files {
			uuids[i] = f.UUID
		}
		if err := p.states.TransitionBatch(ctx, uuids, model.StateDiscovered, nil); err != nil {
			return res, err
		}
		p.logger.Info("reset stuck files", "state", string(s), "count", len(files))
		res.StatesReset += len(files)
	}

	retryable, err := p.states.RetryableFiles(ctx, projectID, p.cfg.MaxRetries)
	if err != nil {
		return res, err
	}
	if len(retryable) > 0 {
		uuids := make([]string, len(retryable))
		for i, f := range retryable {
			uuids[i] = f.UUID
		}
		if err := p.states.TransitionBatch(ctx, uuids, model.StateDiscovered, nil); err != nil {
			return res, err
		}
		res.FilesRecovered = len(retryable)
	}

	stats, err := p.states.StateStats(ctx, projectID)
	if err != nil {
		return res, err
	}
	res.FilesInError = stats[model.StateError]

	p.logger.Info("recovery complete",
		"recovered", res.FilesRecovered, "inError", res.FilesInError,
		"statesReset", res.StatesReset)
	return res, nil
}
