package audit

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCriticalOutranksWarning(t *testing.T) {
	verdict := Classify(NewPortSet(21, 80), NewPortSet(80, 443))

	assert.Equal(t, StatusCritical, verdict.Status)
	assert.Equal(t, PortSet{21}, verdict.Ports)
	assert.Equal(t, headerCritical+"\n21\n", verdict.Message)
}

func TestClassifyOK(t *testing.T) {
	verdict := Classify(NewPortSet(21, 80), NewPortSet(21, 80))

	assert.Equal(t, StatusOK, verdict.Status)
	assert.Equal(t, "OK, all open ports are marked as allowed", verdict.Message)
	assert.Empty(t, verdict.Ports)
	assert.Equal(t, 0, verdict.Status.ExitCode())
}

func TestClassifyNothingOpenNothingAllowed(t *testing.T) {
	verdict := Classify(NewPortSet(), NewPortSet())
	assert.Equal(t, StatusOK, verdict.Status)
}

func TestClassifyWarning(t *testing.T) {
	verdict := Classify(NewPortSet(21), NewPortSet(21, 80))

	assert.Equal(t, StatusWarning, verdict.Status)
	assert.Equal(t, PortSet{80}, verdict.Ports)
	assert.Equal(t, headerWarning+"\n80\n", verdict.Message)
	assert.Equal(t, 1, verdict.Status.ExitCode())
}

func TestClassifyListsEveryOffendingPortAscending(t *testing.T) {
	verdict := Classify(NewPortSet(8080, 22, 3306), NewPortSet())

	assert.Equal(t, StatusCritical, verdict.Status)
	assert.Equal(t, headerCritical+"\n22\n3306\n8080\n", verdict.Message)
	assert.Equal(t, 2, verdict.Status.ExitCode())
}

func TestReport(t *testing.T) {
	out := &bytes.Buffer{}

	code := Report(out, Classify(NewPortSet(21), NewPortSet(21)))
	assert.Equal(t, 0, code)
	assert.Equal(t, "OK, all open ports are marked as allowed\n", out.String())

	out.Reset()
	code = Report(out, Unknown(MessageMissingHost))
	assert.Equal(t, 3, code)
	assert.Equal(t, MessageMissingHost+"\n", out.String())
}

func TestStatusExitCodes(t *testing.T) {
	assert.Equal(t, 0, StatusOK.ExitCode())
	assert.Equal(t, 1, StatusWarning.ExitCode())
	assert.Equal(t, 2, StatusCritical.ExitCode())
	assert.Equal(t, 3, StatusUnknown.ExitCode())
	assert.Equal(t, "CRITICAL", StatusCritical.String())
}
