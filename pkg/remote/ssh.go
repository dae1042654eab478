// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remote

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path"
	"strconv"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// 🔐 clientConfig builds the ssh client configuration
func clientConfig(o SSHOptions) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if o.KeyFile != "" {
		key, err := os.ReadFile(o.KeyFile)
		if err != nil {
			return nil, errors.Errorf("reading key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.Errorf("parsing private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if o.Password != "" {
		auth = append(auth, ssh.Password(o.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if o.KnownHostsFile != "" {
		cb, err := knownhosts.New(o.KnownHostsFile)
		if err != nil {
			return nil, errors.Errorf("loading known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            o.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         o.Timeout,
	}, nil
}

// 📞 DialSSH opens an SSH connection
func DialSSH(ctx context.Context, o SSHOptions) (*ssh.Client, error) {
	cfg, err := clientConfig(o)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	zerolog.Ctx(ctx).Debug().Str("addr", addr).Str("user", o.User).Msg("dialing ssh")

	dialer := net.Dialer{Timeout: o.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Errorf("connecting to %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, errors.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return ssh.NewClient(c, chans, reqs), nil
}

// 🖥️ sshRunner runs commands over an SSH connection
type sshRunner struct {
	client *ssh.Client
}

// NewCommandRunner connects and returns a CommandRunner
func NewCommandRunner(ctx context.Context, o SSHOptions) (CommandRunner, error) {
	client, err := DialSSH(ctx, o)
	if err != nil {
		return nil, err
	}
	return &sshRunner{client: client}, nil
}

// RunCommand runs cmd remotely and returns its stdout. The error contains stderr on failure.
func (r *sshRunner) RunCommand(ctx context.Context, cmd string) (string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", errors.Errorf("creating ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return stdout.String(), errors.Errorf("running command: %w (stderr: %s)", err, stderr.String())
		}
		return stdout.String(), nil
	}
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}

// 📤 sftpWriter writes files through SFTP
type sftpWriter struct {
	sftpClient *sftp.Client
	sshClient  *ssh.Client
}

// NewFileWriter connects and returns an SFTP backed FileWriter
func NewFileWriter(ctx context.Context, o SSHOptions) (FileWriter, error) {
	sshClient, err := DialSSH(ctx, o)
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, errors.Errorf("starting sftp: %w", err)
	}

	return &sftpWriter{sftpClient: sftpClient, sshClient: sshClient}, nil
}

// WriteFile writes content to remotePath, creating parent directories
func (w *sftpWriter) WriteFile(ctx context.Context, remotePath string, content []byte) error {
	dir := path.Dir(remotePath)
	if err := w.sftpClient.MkdirAll(dir); err != nil {
		return errors.Errorf("creating remote directory %s: %w", dir, err)
	}

	f, err := w.sftpClient.Create(remotePath)
	if err != nil {
		return errors.Errorf("creating remote file %s: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, bytes.NewReader(content)); err != nil {
		return errors.Errorf("writing remote file %s: %w", remotePath, err)
	}

	return nil
}

func (w *sftpWriter) Close() error {
	w.sftpClient.Close()
	return w.sshClient.Close()
}
