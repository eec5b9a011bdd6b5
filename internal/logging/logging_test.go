package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestPionFactory_RoutesToLogrus(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	l := (&PionFactory{Logger: logger}).NewLogger("ice")
	l.Warnf("candidate %d dropped", 3)
	l.Info("gathering")
	l.Debug("too chatty")

	out := buf.String()
	assert.Contains(t, out, "candidate 3 dropped")
	assert.Contains(t, out, "pion=ice")
	assert.Contains(t, out, "gathering")
	assert.NotContains(t, out, "too chatty")
}
