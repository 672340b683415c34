package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goforj/datacache"
	"github.com/goforj/datacache/internal/config"
	"github.com/goforj/datacache/internal/version"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = out, errOut
	t.Cleanup(func() { stdOut, stdErr = prevOut, prevErr })
	return out, errOut
}

func writeCLIConfig(t *testing.T, strategy, cacheDir string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
[Log]
Level = "error"
FilePath = %q

[Coordinator]
Strategy = %q
FetchTimeout = "2s"
StoreTimeout = "1s"

[Store]
Driver = "file"
FileDir = %q
`, filepath.Join(dir, "datacache.log"), strategy, cacheDir)
	path := filepath.Join(dir, "datacache.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseCLIFlagsConfigPriority(t *testing.T) {
	t.Setenv("DATACACHE_CONFIG", "")
	opts, err := parseCLIFlags([]string{"-type", "user", "-id", "42"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.configPath != "datacache.toml" {
		t.Fatalf("expected default path, got %q", opts.configPath)
	}
	if opts.objectType != "user" || opts.objectID != "42" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	t.Setenv("DATACACHE_CONFIG", "/etc/env.toml")
	opts, err = parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.configPath != "/etc/env.toml" {
		t.Fatalf("expected env path, got %q", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"-config", "/tmp/flag.toml", "-wait", "3s", "-strategy", "api_first"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag should win over env, got %q", opts.configPath)
	}
	if opts.wait != 3*time.Second || opts.strategy != "api_first" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	opts, err = parseCLIFlags([]string{"-invalidate", "-type", "user"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !opts.invalidate || opts.objectType != "user" || opts.objectID != "" {
		t.Fatalf("unexpected invalidate options: %+v", opts)
	}
}

func TestParseCLIFlagsRejectsUnknownFlag(t *testing.T) {
	if _, err := parseCLIFlags([]string{"-bogus"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestRunPrintsVersion(t *testing.T) {
	out, _ := captureOutput(t)
	if code := run(cliOptions{showVersion: true}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(out.String()) != version.Full() {
		t.Fatalf("unexpected version output: %q", out.String())
	}
}

func TestRunRequiresObjectArguments(t *testing.T) {
	_, errOut := captureOutput(t)
	if code := run(cliOptions{objectType: "user"}); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "required") {
		t.Fatalf("expected usage message, got %q", errOut.String())
	}
}

func TestRunFailsOnBadConfig(t *testing.T) {
	_, errOut := captureOutput(t)
	opts := cliOptions{
		configPath: filepath.Join(t.TempDir(), "absent.toml"),
		objectType: "user",
		objectID:   "42",
		url:        "http://127.0.0.1:1",
	}
	if code := run(opts); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "load config") {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestRunFetchesThenServesFromCache(t *testing.T) {
	cacheDir := t.TempDir()
	up := jsonServer(t, http.StatusOK, `{"name":"ada"}`)

	out, errOut := captureOutput(t)
	opts := cliOptions{
		configPath: writeCLIConfig(t, "api_first", cacheDir),
		objectType: "user",
		objectID:   "42",
		url:        up.URL,
	}
	if code := run(opts); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr %q)", code, errOut.String())
	}
	if strings.TrimSpace(out.String()) != `{"name":"ada"}` {
		t.Fatalf("unexpected output: %q", out.String())
	}

	down := jsonServer(t, http.StatusInternalServerError, `{}`)
	out.Reset()
	opts.url = down.URL
	if code := run(opts); code != 0 {
		t.Fatalf("expected cached value after upstream failure, got %d (stderr %q)", code, errOut.String())
	}
	if strings.TrimSpace(out.String()) != `{"name":"ada"}` {
		t.Fatalf("unexpected cached output: %q", out.String())
	}

	out.Reset()
	opts.configPath = writeCLIConfig(t, "cache_first", cacheDir)
	if code := run(opts); code != 0 {
		t.Fatalf("expected cache_first hit, got %d (stderr %q)", code, errOut.String())
	}
	if strings.TrimSpace(out.String()) != `{"name":"ada"}` {
		t.Fatalf("unexpected cache_first output: %q", out.String())
	}
}

func TestRunInvalidateScopes(t *testing.T) {
	cacheDir := t.TempDir()
	configPath := writeCLIConfig(t, "cache_first", cacheDir)
	out, errOut := captureOutput(t)

	seed := func(objectType, objectID, body string) {
		t.Helper()
		up := jsonServer(t, http.StatusOK, body)
		opts := cliOptions{configPath: configPath, objectType: objectType, objectID: objectID, url: up.URL}
		if code := run(opts); code != 0 {
			t.Fatalf("seed %s/%s: exit %d (stderr %q)", objectType, objectID, code, errOut.String())
		}
	}
	cached := func(objectType, objectID string) bool {
		t.Helper()
		down := jsonServer(t, http.StatusInternalServerError, `{}`)
		opts := cliOptions{configPath: configPath, objectType: objectType, objectID: objectID, url: down.URL}
		return run(opts) == 0
	}
	invalidate := func(objectType, objectID string) {
		t.Helper()
		out.Reset()
		opts := cliOptions{configPath: configPath, objectType: objectType, objectID: objectID, invalidate: true}
		if code := run(opts); code != 0 {
			t.Fatalf("invalidate %q/%q: exit %d (stderr %q)", objectType, objectID, code, errOut.String())
		}
		if !strings.HasPrefix(out.String(), "invalidated ") {
			t.Fatalf("unexpected output: %q", out.String())
		}
	}

	seed("user", "1", `{"id":1}`)
	seed("user", "2", `{"id":2}`)
	seed("order", "9", `{"id":9}`)

	invalidate("user", "1")
	if cached("user", "1") || !cached("user", "2") {
		t.Fatalf("expected only user/1 dropped")
	}

	invalidate("user", "")
	if cached("user", "2") || !cached("order", "9") {
		t.Fatalf("expected user type dropped and order kept")
	}

	invalidate("", "")
	if cached("order", "9") {
		t.Fatalf("expected everything dropped")
	}
}

func TestRunInvalidateRequiresTypeForID(t *testing.T) {
	_, errOut := captureOutput(t)
	if code := run(cliOptions{objectID: "1", invalidate: true}); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "-id needs -type") {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestRunStrategyFlagOverridesConfig(t *testing.T) {
	cacheDir := t.TempDir()
	up := jsonServer(t, http.StatusOK, `[1,2,3]`)
	out, _ := captureOutput(t)
	opts := cliOptions{
		configPath: writeCLIConfig(t, "cache_first", cacheDir),
		objectType: "list",
		objectID:   "7",
		url:        up.URL,
		strategy:   "use_google",
	}
	if code := run(opts); code != 1 {
		t.Fatalf("expected exit 1 for unknown strategy, got %d", code)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestRunReportsNoData(t *testing.T) {
	down := jsonServer(t, http.StatusInternalServerError, `{}`)
	_, errOut := captureOutput(t)
	opts := cliOptions{
		configPath: writeCLIConfig(t, "api_first", t.TempDir()),
		objectType: "user",
		objectID:   "404",
		url:        down.URL,
	}
	if code := run(opts); code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
	if !strings.Contains(errOut.String(), "no cache match") {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestRunTreatsNullBodyAsNoData(t *testing.T) {
	empty := jsonServer(t, http.StatusOK, `null`)
	captureOutput(t)
	opts := cliOptions{
		configPath: writeCLIConfig(t, "cache_first", t.TempDir()),
		objectType: "user",
		objectID:   "1",
		url:        empty.URL,
	}
	if code := run(opts); code != 3 {
		t.Fatalf("expected exit 3 for a null body, got %d", code)
	}
}

func TestHTTPFetch(t *testing.T) {
	ok := jsonServer(t, http.StatusOK, `{"id":1}`)
	value, err := httpFetch(ok.Client(), ok.URL)(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(value) != `{"id":1}` {
		t.Fatalf("unexpected body: %s", value)
	}

	bad := jsonServer(t, http.StatusBadGateway, `{}`)
	if _, err := httpFetch(bad.Client(), bad.URL)(context.Background()); err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}

	garbage := jsonServer(t, http.StatusOK, `{not json`)
	if _, err := httpFetch(garbage.Client(), garbage.URL)(context.Background()); !errors.Is(err, errInvalidJSON) {
		t.Fatalf("expected errInvalidJSON, got %v", err)
	}
}

func TestHTTPFetchHonorsContext(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := httpFetch(slow.Client(), slow.URL)(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestIsEmptyJSON(t *testing.T) {
	cases := map[string]bool{
		"":           true,
		"  ":         true,
		"null":       true,
		" null\n":    true,
		"{}":         false,
		"[]":         false,
		"0":          false,
		`{"a":null}`: false,
	}
	for in, want := range cases {
		if got := isEmptyJSON(json.RawMessage(in)); got != want {
			t.Fatalf("isEmptyJSON(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTrackerWaitsForPendingWrites(t *testing.T) {
	track := newTracker()
	ctx := context.Background()
	key := datacache.Key{ObjectType: "user", ObjectID: "42"}

	track.OnCacheOp(ctx, datacache.OpFetch, key, true, nil, 0)
	if track.idle(false) {
		t.Fatalf("expected pending write after successful fetch")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		track.OnCacheOp(ctx, datacache.OpSet, key, false, nil, 0)
	}()
	start := time.Now()
	track.wait(time.Second, 0)
	if time.Since(start) >= time.Second {
		t.Fatalf("wait should return once the write lands")
	}
	if !track.idle(false) {
		t.Fatalf("expected idle tracker")
	}
}

func TestTrackerRefreshWait(t *testing.T) {
	track := newTracker()
	ctx := context.Background()
	key := datacache.Key{ObjectType: "user", ObjectID: "42"}

	track.OnCacheOp(ctx, datacache.OpFetch, key, false, errors.New("down"), 0)
	if !track.idle(false) {
		t.Fatalf("failed fetch must not leave a pending write")
	}
	if track.idle(true) || track.refreshed() {
		t.Fatalf("refresh has not settled yet")
	}

	start := time.Now()
	track.wait(0, 30*time.Millisecond)
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("wait should honor the refresh limit")
	}

	track.OnCacheOp(ctx, datacache.OpRefresh, key, true, nil, 0)
	if !track.refreshed() || !track.idle(true) {
		t.Fatalf("expected settled refresh")
	}
}

func TestBuildStoreMemoryAndFailure(t *testing.T) {
	store, closeStore, err := buildStore(context.Background(), config.StoreConfig{Driver: "memory", Prefix: "t", Compression: "gzip"})
	if err != nil {
		t.Fatalf("build memory store: %v", err)
	}
	defer closeStore()
	if store.Driver() != datacache.DriverMemory {
		t.Fatalf("unexpected driver %q", store.Driver())
	}

	if _, _, err := buildStore(context.Background(), config.StoreConfig{Driver: "sql", SQLDriver: "nope", SQLDSN: "x"}); err == nil {
		t.Fatalf("expected error for unknown sql driver")
	}
}
