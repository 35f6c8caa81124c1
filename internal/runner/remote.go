package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	xssh "golang.org/x/crypto/ssh"
)

// Remote executes a script on another host: it dials SSH with key auth,
// pushes the script over SFTP to a per-run temp path, runs it and removes
// it.
type Remote struct {
	Addr           string // host:port
	User           string
	KeyPath        string
	KnownHostsPath string
	Timeout        time.Duration
	Retries        int
	Backoff        time.Duration
}

func (r *Remote) makeConfig() (*xssh.ClientConfig, error) {
	if r.Addr == "" {
		return nil, fmt.Errorf("remote: addr required")
	}
	signer, err := LoadPrivateKeySigner(r.KeyPath)
	if err != nil {
		return nil, err
	}
	hostKeys, err := LoadKnownHostsCallback(r.KnownHostsPath)
	if err != nil {
		return nil, err
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &xssh.ClientConfig{
		User:            r.User,
		Auth:            []xssh.AuthMethod{xssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

// Run uploads and executes the script, returning its combined output.
// Dial failures are retried with basic backoff; a script that ran and
// failed is not retried, because the script is only guaranteed idempotent
// within a single run.
func (r *Remote) Run(ctx context.Context, script string) (string, error) {
	cfg, err := r.makeConfig()
	if err != nil {
		return "", err
	}
	retries := r.Retries
	if retries < 0 {
		retries = 0
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		cli, err := xssh.Dial("tcp", r.Addr, cfg)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Int("attempt", attempt).Str("addr", r.Addr).Msg("ssh dial failed")
			if attempt < retries {
				time.Sleep(backoff)
			}
			continue
		}
		defer cli.Close()
		return r.execute(cli, script)
	}
	return "", fmt.Errorf("dial %s: %w", r.Addr, lastErr)
}

func (r *Remote) execute(cli *xssh.Client, script string) (string, error) {
	runID := uuid.NewString()
	remotePath := "/tmp/shellbake-" + runID + ".bash"

	if err := pushScript(cli, remotePath, script); err != nil {
		return "", err
	}
	log.Debug().Str("run_id", runID).Str("addr", r.Addr).Msg("executing remote script")

	session, err := cli.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()
	out, runErr := session.CombinedOutput(remotePath)

	if cleanup, err := cli.NewSession(); err == nil {
		_, _ = cleanup.CombinedOutput("rm -f -- " + remotePath)
		cleanup.Close()
	}
	if runErr != nil {
		return string(out), fmt.Errorf("remote script %s: %w", runID, runErr)
	}
	return string(out), nil
}

// pushScript writes the script straight to the remote path via SFTP and
// makes it executable.
func pushScript(cli *xssh.Client, remotePath, script string) error {
	sf, err := sftp.NewClient(cli)
	if err != nil {
		return fmt.Errorf("sftp client: %w", err)
	}
	defer sf.Close()
	dst, err := sf.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	if _, err := dst.Write([]byte(script)); err != nil {
		dst.Close()
		return fmt.Errorf("write remote: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close remote: %w", err)
	}
	if err := sf.Chmod(remotePath, 0700); err != nil {
		return fmt.Errorf("chmod remote: %w", err)
	}
	return nil
}
