package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/guardsync/reconciler"
	"github.com/yairfalse/guardsync/wal"
)

func sweepWithImports(imported int) reconciler.Result {
	return reconciler.Result{
		Summaries: map[reconciler.Category]reconciler.CategorySummary{
			reconciler.CategoryDetector: {Imported: imported, AlreadyTracked: 4 - imported},
		},
	}
}

func TestRepeatImportFlagsBackToBackImports(t *testing.T) {
	// Newest first: both recent sweeps imported, the matrix never converged.
	sweeps := []reconciler.Result{
		sweepWithImports(2),
		sweepWithImports(3),
		sweepWithImports(0),
	}

	assert.True(t, repeatImport(sweeps, 0))
	assert.False(t, repeatImport(sweeps, 1))
}

func TestRepeatImportQuietWhenConverged(t *testing.T) {
	// A converged history: one importing sweep followed by clean passes.
	sweeps := []reconciler.Result{
		sweepWithImports(0),
		sweepWithImports(0),
		sweepWithImports(5),
	}

	for i := range sweeps {
		assert.False(t, repeatImport(sweeps, i), "index %d", i)
	}
}

func TestRepeatImportShortHistory(t *testing.T) {
	assert.False(t, repeatImport(nil, 0))
	assert.False(t, repeatImport([]reconciler.Result{sweepWithImports(1)}, 0))
}

func TestAuditCounts(t *testing.T) {
	entries := []wal.Entry{
		{Type: wal.EntryObserved, Data: json.RawMessage("{}")},
		{Type: wal.EntryObserved, Data: json.RawMessage("{}")},
		{Type: wal.EntryImported, Data: json.RawMessage("{}")},
		{Type: wal.EntryFailed, Data: json.RawMessage("{}")},
	}

	counts := auditCounts(entries)
	assert.Equal(t, 2, counts[wal.EntryObserved])
	assert.Equal(t, 1, counts[wal.EntryImported])
	assert.Equal(t, 1, counts[wal.EntryFailed])
	assert.Zero(t, counts[wal.EntryVerified])
}
