package runner

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	xssh "golang.org/x/crypto/ssh"
)

func TestLocalRun(t *testing.T) {
	if _, err := exec.LookPath("/bin/bash"); err != nil {
		t.Skip("bash not available")
	}
	var out bytes.Buffer
	l := &Local{Stdout: &out, Stderr: &out}
	script := "#!/bin/bash\nset -o errexit -o nounset -o pipefail\n\necho ran\n"
	if err := l.Run(context.Background(), script); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "ran\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestLocalRunFailure(t *testing.T) {
	if _, err := exec.LookPath("/bin/bash"); err != nil {
		t.Skip("bash not available")
	}
	var out bytes.Buffer
	l := &Local{Stdout: &out, Stderr: &out}
	script := "#!/bin/bash\nset -o errexit -o nounset -o pipefail\n\nfalse\necho never\n"
	if err := l.Run(context.Background(), script); err == nil {
		t.Fatal("failing script must surface an error")
	}
	if out.String() != "" {
		t.Errorf("nothing should print past the failure: %q", out.String())
	}
}

func TestLocalRunBadShell(t *testing.T) {
	l := &Local{Shell: "/nonexistent/shell"}
	if err := l.Run(context.Background(), "echo hi\n"); err == nil {
		t.Fatal("missing interpreter must surface an error")
	}
}

func TestRemoteConfigValidation(t *testing.T) {
	r := &Remote{}
	if _, err := r.Run(context.Background(), "echo hi\n"); err == nil {
		t.Fatal("remote without an address must fail before dialing")
	}
	r = &Remote{Addr: "127.0.0.1:22"}
	if _, err := r.Run(context.Background(), "echo hi\n"); err == nil {
		t.Fatal("remote without a key path must fail before dialing")
	}
}

// writeTestKey writes a fresh ed25519 private key and returns its path.
func writeTestKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := xssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRemoteNoBackoffAfterFinalAttempt(t *testing.T) {
	// Grab a port nothing listens on so the dial is refused immediately.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	if err := EnsureKnownHostsFile(knownHosts); err != nil {
		t.Fatal(err)
	}
	r := &Remote{
		Addr:           addr,
		User:           "nobody",
		KeyPath:        writeTestKey(t),
		KnownHostsPath: knownHosts,
		Timeout:        2 * time.Second,
		Retries:        0,
		Backoff:        10 * time.Second,
	}

	start := time.Now()
	if _, err := r.Run(context.Background(), "echo hi\n"); err == nil {
		t.Fatal("dialing a closed port must fail")
	}
	if elapsed := time.Since(start); elapsed >= r.Backoff {
		t.Errorf("backoff slept after the final attempt: took %v", elapsed)
	}
}
