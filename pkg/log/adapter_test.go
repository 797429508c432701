package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestBadgerLogrusAdapter_ForwardsToLogrus(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	adapter := NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))

	adapter.Errorf("error %d", 1)
	adapter.Warningf("warning %d", 2)
	adapter.Infof("info %d", 3)
	adapter.Debugf("debug %d", 4)

	out := buf.String()
	for _, want := range []string{"error 1", "warning 2", "info 3", "debug 4", "component=badgerdb"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q; got:\n%s", want, out)
		}
	}
}
