package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/micromanager/internal/config"
	"github.com/jrsteele09/micromanager/internal/devserver"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now  time.Time
	lock sync.Mutex
}

func (c *clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

func setupCLI(t *testing.T, store string) *clock {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "1m")
	t.Setenv(passwordEnvVar, "")

	c := &clock{now: time.Now()}
	srv := httptest.NewServer(devserver.New(config.New(), devserver.WithNowFunc(c.Now)))
	t.Cleanup(srv.Close)

	t.Setenv("API_URL", srv.URL+"/api")
	t.Setenv("SESSION_STORE", store)
	t.Setenv("SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	return c
}

func runCLI(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), config.New(), args, strings.NewReader(input), &out)
	return out.String(), err
}

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{``, nil},
		{`list`, []string{"list"}},
		{`  start   billing `, []string{"start", "billing"}},
		{`create --description "two words"`, []string{"create", "--description", "two words"}},
		{`create --description ""`, []string{"create", "--description", ""}},
		{"edit\t--name\tx", []string{"edit", "--name", "x"}},
	}
	for _, tc := range cases {
		got, err := splitArgs(tc.line)
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.want, got, tc.line)
	}

	_, err := splitArgs(`create --description "oops`)
	require.ErrorContains(t, err, "unterminated quote")
}

func TestUsage(t *testing.T) {
	t.Setenv("APP_NAME", "MM")
	out, err := runCLI(t, "")
	require.NoError(t, err)
	require.Contains(t, out, "Usage: micromanager <command>")
	require.Contains(t, out, "shell [--metrics-addr ADDR]")

	_, err = runCLI(t, "", "bogus")
	require.ErrorContains(t, err, `unknown command "bogus"`)
}

func TestOneShotCommands(t *testing.T) {
	setupCLI(t, config.StoreFile)
	code := filepath.Join(t.TempDir(), "app.py")
	require.NoError(t, os.WriteFile(code, []byte("print('hi')"), 0o600))

	out, err := runCLI(t, "", "register", "--first-name", "Jane", "--email", "jane@example.com", "--password", "password1")
	require.NoError(t, err)
	require.Contains(t, out, "Account created")

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Not signed in.")

	t.Setenv(passwordEnvVar, "password1")
	out, err = runCLI(t, "", "login", "--email", "jane@example.com")
	require.NoError(t, err)
	require.Contains(t, out, "Welcome, Jane.")

	// Each invocation is a new process; the session file carries the tokens.
	_, err = runCLI(t, "", "create", "--name", "billing", "--type", "api", "--file", code)
	require.NoError(t, err)

	out, err = runCLI(t, "", "list")
	require.NoError(t, err)
	require.Contains(t, out, "billing")
	require.Contains(t, out, "running")

	out, err = runCLI(t, "", "summary")
	require.NoError(t, err)
	require.Contains(t, out, "Total: 1  Running: 1  Stopped: 0")
	require.Contains(t, out, "api: 1")

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Jane <jane@example.com>")
	require.Contains(t, out, "Access token")

	out, err = runCLI(t, "", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Signed out.")

	out, err = runCLI(t, "", "list")
	require.Error(t, err)
	require.Contains(t, out, "Your session has expired. Please sign in again.")
}

func TestOneShotExpiryNeedsLogin(t *testing.T) {
	c := setupCLI(t, config.StoreFile)

	_, err := runCLI(t, "", "register", "--first-name", "Jane", "--email", "jane@example.com", "--password", "password1")
	require.NoError(t, err)
	_, err = runCLI(t, "", "login", "--email", "jane@example.com", "--password", "password1")
	require.NoError(t, err)

	c.Advance(5 * time.Minute)
	out, err := runCLI(t, "", "list")
	require.Error(t, err)
	require.Contains(t, out, "Your session has expired.")
	require.Contains(t, out, "micromanager login")
}

func TestShellRecoversExpiredToken(t *testing.T) {
	c := setupCLI(t, config.StoreMemory)
	_, err := runCLI(t, "", "register", "--first-name", "Jane", "--email", "jane@example.com", "--password", "password1")
	require.NoError(t, err)

	// Advance the server clock while the shell is reading its next line.
	r, w := io.Pipe()
	done := make(chan struct{})
	var out syncBuffer
	go func() {
		defer close(done)
		err = run(context.Background(), config.New(), []string{"shell"}, r, &out)
	}()

	write := func(line string) {
		_, werr := w.Write([]byte(line + "\n"))
		require.NoError(t, werr)
	}
	write(`login --email jane@example.com --password password1`)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Welcome, Jane.") }, 5*time.Second, 10*time.Millisecond)

	c.Advance(5 * time.Minute)
	write(`list`)
	write(`summary`)
	write(`exit`)
	<-done

	require.NoError(t, err)
	require.Contains(t, out.String(), "No microservices.")
	require.Contains(t, out.String(), "Total: 0")
	require.NotContains(t, out.String(), "session has expired")
}

type syncBuffer struct {
	buf  bytes.Buffer
	lock sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}
