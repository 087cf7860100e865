package logrus

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/tplcache"
)

func TestLogrusLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)

	New(l).With(tplcache.Fields{"cache": "templates"}).Warn("store culled", tplcache.Fields{"removed": 3})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not json: %q", buf.String())
	}
	if got["msg"] != "store culled" || got["cache"] != "templates" || got["removed"] != float64(3) || got["level"] != "warning" {
		t.Fatalf("unexpected entry: %v", got)
	}
}

func TestLogrusLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)

	New(l).Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug entry written at info level: %q", buf.String())
	}
}
