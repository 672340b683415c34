package datacache

import (
	"github.com/sirupsen/logrus"
)

// Severity classifies a reported failure.
type Severity string

const (
	// SeverityWarning marks a failure the coordinator recovered from.
	SeverityWarning Severity = "warning"
	// SeverityError marks a failure that decided the outcome of Retrieve.
	SeverityError Severity = "error"
)

func (c *Coordinator[T]) report(phase string, err error, sev Severity) {
	if c.cfg.OnError != nil {
		safeCall(func() { c.cfg.OnError(err, sev) })
	}
	if !c.cfg.Debug {
		return
	}
	entry := c.cfg.Logger.WithFields(c.fields()).WithFields(logrus.Fields{
		"phase":    phase,
		"severity": string(sev),
	}).WithError(err)
	if sev == SeverityError {
		entry.Error("datacache: retrieve failed")
		return
	}
	entry.Warn("datacache: recovered from failure")
}

func (c *Coordinator[T]) debug(msg string) {
	if !c.cfg.Debug {
		return
	}
	c.cfg.Logger.WithFields(c.fields()).Info("datacache: " + msg)
}

func (c *Coordinator[T]) fields() logrus.Fields {
	return logrus.Fields{
		"object_type": c.key.ObjectType,
		"object_id":   c.key.ObjectID,
		"invocation":  c.id,
	}
}

// safeCall keeps caller supplied callbacks from taking down a retrieval or a
// background goroutine.
func safeCall(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
