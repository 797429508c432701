package log

import "github.com/sirupsen/logrus"

// BadgerLogrusAdapter satisfies badger.Logger so the embedded key-value store
// writes through the same contextualized logrus entry as the rest of the run
// instead of its own default logger.
type BadgerLogrusAdapter struct {
	*logrus.Entry
}

// NewBadgerLogrusAdapter wraps entry for use as a badger.Logger.
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

// Errorf forwards store errors at error level.
func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

// Warningf forwards store warnings at warn level.
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }

// Infof forwards store chatter (compactions, value-log GC) at info level.
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Infof(f, v...) }

// Debugf forwards store internals at debug level.
func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }
