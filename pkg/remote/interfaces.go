package remote

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// 🔌 SSHOptions describes how to reach a host over SSH
type SSHOptions struct {
	Host           string
	Port           int
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string // empty disables host key verification
	Timeout        time.Duration
}

// 📥 SSHOptionsFrom reads SSH options from a target or operation option map
func SSHOptionsFrom(opts map[string]string) (SSHOptions, error) {
	o := SSHOptions{
		Host:           strings.TrimSpace(opts["host"]),
		Port:           22,
		User:           strings.TrimSpace(opts["user"]),
		Password:       opts["password"],
		KeyFile:        strings.TrimSpace(opts["key_file"]),
		KnownHostsFile: strings.TrimSpace(opts["known_hosts"]),
		Timeout:        10 * time.Second,
	}

	if o.Host == "" {
		return SSHOptions{}, errors.Errorf("option host is required")
	}
	if o.User == "" {
		return SSHOptions{}, errors.Errorf("option user is required")
	}
	if o.Password == "" && o.KeyFile == "" {
		return SSHOptions{}, errors.Errorf("option password or key_file is required")
	}

	if p := strings.TrimSpace(opts["port"]); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return SSHOptions{}, errors.Errorf("invalid port %q", p)
		}
		o.Port = port
	}

	if t := strings.TrimSpace(opts["timeout"]); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return SSHOptions{}, errors.Errorf("invalid timeout %q: %w", t, err)
		}
		o.Timeout = d
	}

	return o, nil
}

// 🖥️ CommandRunner runs commands on a remote host
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd string) (string, error)
	io.Closer
}

// 📤 FileWriter writes files on a remote host
type FileWriter interface {
	WriteFile(ctx context.Context, remotePath string, content []byte) error
	io.Closer
}
