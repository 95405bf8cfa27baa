package types

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestValidStrategy(t *testing.T) {
	c := qt.New(t)

	for _, s := range Strategies {
		c.Check(ValidStrategy(s), qt.IsTrue, qt.Commentf("strategy %q", s))
	}

	c.Check(ValidStrategy(Strategy("")), qt.IsFalse)
	c.Check(ValidStrategy(Strategy("file_search")), qt.IsFalse, qt.Commentf("strategy names are upper case"))
	c.Check(ValidStrategy(Strategy("VECTOR")), qt.IsFalse)
}

func TestValidStrategyStatus(t *testing.T) {
	c := qt.New(t)

	for _, s := range StrategyStatuses {
		c.Check(ValidStrategyStatus(s), qt.IsTrue, qt.Commentf("status %q", s))
	}

	c.Check(ValidStrategyStatus(StrategyStatus("")), qt.IsFalse)
	c.Check(ValidStrategyStatus(StrategyStatus("DONE")), qt.IsFalse)
}

func TestNewStatusRecord(t *testing.T) {
	c := qt.New(t)

	rec := NewStatusRecord(StatusExtracting)
	c.Check(rec.Status, qt.Equals, StatusExtracting)
	c.Assert(rec.StartedAt, qt.IsNotNil)
	c.Check(rec.CompletedAt, qt.IsNil)
	c.Check(rec.Error, qt.IsNil)

	done := NewStatusRecord(StatusCompleted)
	c.Check(done.CompletedAt, qt.IsNotNil)

	failed := NewStatusRecord(StatusFailed)
	c.Check(failed.CompletedAt, qt.IsNotNil)
}

func TestTerminalStatus(t *testing.T) {
	c := qt.New(t)

	c.Check(TerminalStatus(StatusCompleted), qt.IsTrue)
	c.Check(TerminalStatus(StatusFailed), qt.IsTrue)
	c.Check(TerminalStatus(StatusPending), qt.IsFalse)
	c.Check(TerminalStatus(StatusUploading), qt.IsFalse)
	c.Check(TerminalStatus(StatusExtracting), qt.IsFalse)
	c.Check(TerminalStatus(StatusEmbedding), qt.IsFalse)
}
