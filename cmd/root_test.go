package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/liamg/portaudit/audit"
	mock_scan "github.com/liamg/portaudit/mock/scan"
	"github.com/liamg/portaudit/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func scannerFactoryFor(scanner scan.Scanner, calls *int) scannerFactory {
	return func(scanType string, timeout time.Duration, routines int) (scan.Scanner, error) {
		*calls++
		return scanner, nil
	}
}

func scanResult(open ...int) scan.Result {
	result := scan.NewResult(net.ParseIP("127.0.0.1"))
	result.Open = open
	return result
}

func TestMissingHostNeverScans(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	calls := 0
	out := &bytes.Buffer{}

	code := execute(context.Background(), []string{"-P", "22"}, out, scannerFactoryFor(mock_scan.NewMockScanner(ctrl), &calls))

	assert.Equal(t, 3, code)
	assert.Equal(t, 0, calls)
	assert.Equal(t, audit.MessageMissingHost+"\n", out.String())
}

func TestMalformedInputIsUnknown(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"bad start", []string{"-H", "127.0.0.1", "-S", "abc"}, audit.MessageBadRange},
		{"bad end", []string{"-H", "127.0.0.1", "-E", "8o"}, audit.MessageBadRange},
		{"start after end", []string{"-H", "127.0.0.1", "-S", "100", "-E", "99"}, audit.MessageBadRange},
		{"negative start", []string{"-H", "127.0.0.1", "-S", "-1"}, audit.MessageBadRange},
		{"end beyond port space", []string{"-H", "127.0.0.1", "-E", "65537"}, audit.MessageBadRange},
		{"empty token in allow-list", []string{"-H", "127.0.0.1", "-P", "21,,80"}, audit.MessageBadAllowList},
		{"word in allow-list", []string{"-H", "127.0.0.1", "-P", "21,abc"}, audit.MessageBadAllowList},
		{"host checked first", []string{"-S", "abc", "-P", "x"}, audit.MessageMissingHost},
		{"zero workers", []string{"-H", "127.0.0.1", "-w", "0"}, "Error, invalid value '0' for --workers"},
		{"unknown scan type", []string{"-H", "127.0.0.1", "-s", "xmas"}, "Error, invalid value 'xmas' for --scan-type"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			calls := 0
			out := &bytes.Buffer{}

			code := execute(context.Background(), test.args, out, scannerFactoryFor(mock_scan.NewMockScanner(ctrl), &calls))

			assert.Equal(t, 3, code)
			assert.Equal(t, 0, calls)
			assert.Equal(t, test.message+"\n", out.String())
		})
	}
}

func TestUnknownFlagIsUnknown(t *testing.T) {
	out := &bytes.Buffer{}
	code := execute(context.Background(), []string{"--nope"}, out, createScanner)

	assert.Equal(t, 3, code)
	assert.Contains(t, out.String(), "Error, unknown flag: --nope")
}

func TestVerdictExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		open   []int
		allow  string
		code   int
		output string
	}{
		{"ok", []int{21, 80}, "80,21", 0, "OK, all open ports are marked as allowed\n"},
		{"warning", []int{21}, "21,80", 1, "Warning, there are more ports specified as allowed open ports than are actually open. Unused allowed ports are:\n80\n\n"},
		{"critical outranks warning", []int{21, 80}, "80,443", 2, "Critical, there are ports open wich were not specified as allowed open ports. Open ports are:\n21\n\n"},
		{"nothing allowed", []int{22}, "", 2, "Critical, there are ports open wich were not specified as allowed open ports. Open ports are:\n22\n\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			scanner := mock_scan.NewMockScanner(ctrl)

			scanner.EXPECT().
				Scan(gomock.Any(), net.ParseIP("127.0.0.1").To4(), scan.NewRange(0, 65536)).
				Return(scanResult(test.open...), nil)

			calls := 0
			out := &bytes.Buffer{}

			code := execute(context.Background(), []string{"-H", "127.0.0.1", "-P", test.allow}, out, scannerFactoryFor(scanner, &calls))

			assert.Equal(t, test.code, code)
			assert.Equal(t, 1, calls)
			assert.Equal(t, test.output, out.String())
		})
	}
}

func TestRangeBoundsArePassedInclusive(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mock_scan.NewMockScanner(ctrl)

	scanner.EXPECT().
		Scan(gomock.Any(), gomock.Any(), scan.NewRange(79, 80)).
		Return(scanResult(80), nil)

	calls := 0
	out := &bytes.Buffer{}

	code := execute(context.Background(), []string{"-H", "127.0.0.1", "-S", "79", "-E", "80", "-P", "80"}, out, scannerFactoryFor(scanner, &calls))
	assert.Equal(t, 0, code)
}

func TestScanFailureIsUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mock_scan.NewMockScanner(ctrl)

	scanner.EXPECT().
		Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(scan.Result{}, errors.New("no route"))

	calls := 0
	out := &bytes.Buffer{}

	code := execute(context.Background(), []string{"-H", "127.0.0.1"}, out, scannerFactoryFor(scanner, &calls))
	assert.Equal(t, 3, code)
	assert.Equal(t, "Error, scan of '127.0.0.1' failed: no route\n", out.String())
}

func TestUnresolvableHostIsUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	calls := 0
	out := &bytes.Buffer{}

	code := execute(context.Background(), []string{"-H", "host.invalid"}, out, scannerFactoryFor(mock_scan.NewMockScanner(ctrl), &calls))
	assert.Equal(t, 3, code)
	assert.Equal(t, "Error, could not resolve host 'host.invalid'\n", out.String())
}

func TestOptionsFromEnvironment(t *testing.T) {
	t.Setenv("PORTAUDIT_HOSTADDRESS", "127.0.0.1")
	t.Setenv("PORTAUDIT_PORT", "22")
	t.Setenv("PORTAUDIT_ENDPORTRANGE", "1024")
	t.Setenv("PORTAUDIT_TIMEOUT_MS", "250")

	var timeout time.Duration
	ctrl := gomock.NewController(t)
	scanner := mock_scan.NewMockScanner(ctrl)
	scanner.EXPECT().
		Scan(gomock.Any(), gomock.Any(), scan.NewRange(0, 1024)).
		Return(scanResult(22), nil)

	factory := func(scanType string, d time.Duration, routines int) (scan.Scanner, error) {
		timeout = d
		return scanner, nil
	}

	out := &bytes.Buffer{}
	code := execute(context.Background(), nil, out, factory)

	assert.Equal(t, 0, code)
	assert.Equal(t, 250*time.Millisecond, timeout)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "portaudit.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("hostaddress: 127.0.0.1\nport: \"22,80\"\nstartportrange: 20\nendportrange: 100\nworkers: 8\n"), 0600))

	var workers int
	ctrl := gomock.NewController(t)
	scanner := mock_scan.NewMockScanner(ctrl)
	scanner.EXPECT().
		Scan(gomock.Any(), gomock.Any(), scan.NewRange(20, 90)).
		Return(scanResult(22, 80), nil)

	factory := func(scanType string, timeout time.Duration, routines int) (scan.Scanner, error) {
		workers = routines
		return scanner, nil
	}

	out := &bytes.Buffer{}
	code := execute(context.Background(), []string{"--config", configPath, "-E", "90"}, out, factory)

	assert.Equal(t, 0, code)
	assert.Equal(t, 8, workers)
}

func TestMissingConfigFileIsUnknown(t *testing.T) {
	out := &bytes.Buffer{}
	code := execute(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, out, createScanner)

	assert.Equal(t, 3, code)
	assert.Contains(t, out.String(), "Error, could not read config file")
}

func TestVersion(t *testing.T) {
	out := &bytes.Buffer{}
	code := execute(context.Background(), []string{"--version"}, out, createScanner)

	assert.Equal(t, 0, code)
	assert.Equal(t, "portaudit development version\n", out.String())
}

func TestAuditLoopback(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	metricsFile := filepath.Join(t.TempDir(), "portaudit.prom")

	out := &bytes.Buffer{}
	code := execute(context.Background(), []string{"-H", "127.0.0.1", "-S", port, "-E", port, "--metrics-file", metricsFile}, out, createScanner)
	assert.Equal(t, 2, code)
	assert.Equal(t, fmt.Sprintf("Critical, there are ports open wich were not specified as allowed open ports. Open ports are:\n%s\n\n", port), out.String())

	raw, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `portaudit_status{host="127.0.0.1"} 2`)

	out.Reset()
	code = execute(context.Background(), []string{"-H", "127.0.0.1", "-S", port, "-E", port, "-P", port, "-w", "4"}, out, createScanner)
	assert.Equal(t, 0, code)
	assert.Equal(t, "OK, all open ports are marked as allowed\n", out.String())
}
