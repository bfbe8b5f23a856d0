package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSchemaCmd(t *testing.T) {
	out, err := execute(t, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(out, "CREATE TABLE IF NOT EXISTS license") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestHWIDCmd(t *testing.T) {
	out, err := execute(t, "hwid")
	if err != nil {
		t.Fatalf("hwid: %v", err)
	}
	if len(strings.TrimSpace(out)) != 64 {
		t.Errorf("unexpected hwid %q", out)
	}
}

func TestCheckCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.UserAgent(), "licverify/") {
			_, _ = w.Write([]byte(`{"valid":true,"hwid_match":true,"product_type":"pro"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "license.dat")

	out, err := execute(t, "check", "XYZ1", "--server", srv.URL, "--cache", cache, "--hwid", "H1", "--retries", "0")
	if err != nil {
		t.Fatalf("check: %v (%s)", err, out)
	}
	if !strings.Contains(out, "authorized: true") || !strings.Contains(out, "source:     online") {
		t.Errorf("unexpected output %q", out)
	}

	// server gone: cached pair still authorizes
	srv.Close()
	out, err = execute(t, "check", "XYZ1", "--server", srv.URL, "--cache", cache, "--hwid", "H1", "--retries", "0")
	if err != nil {
		t.Fatalf("offline check: %v (%s)", err, out)
	}
	if !strings.Contains(out, "source:     offline") {
		t.Errorf("unexpected output %q", out)
	}
}
