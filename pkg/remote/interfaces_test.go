package remote_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/deployrc/pkg/remote"
)

// TestInterfaceMethodSignatures verifies that our interfaces have the correct method signatures
func TestInterfaceMethodSignatures(t *testing.T) {
	var _ interface {
		RunCommand(context.Context, string) (string, error)
		Close() error
	} = (remote.CommandRunner)(nil)

	var _ interface {
		WriteFile(context.Context, string, []byte) error
		Close() error
	} = (remote.FileWriter)(nil)
}

func TestSSHOptionsFrom(t *testing.T) {
	tests := []struct {
		name        string
		opts        map[string]string
		want        remote.SSHOptions
		errContains string
	}{
		{
			name: "defaults",
			opts: map[string]string{"host": "example.com", "user": "deploy", "key_file": "/keys/id"},
			want: remote.SSHOptions{
				Host:    "example.com",
				Port:    22,
				User:    "deploy",
				KeyFile: "/keys/id",
				Timeout: 10 * time.Second,
			},
		},
		{
			name: "custom_port_and_timeout",
			opts: map[string]string{
				"host": "example.com", "user": "deploy", "password": "secret",
				"port": "2222", "timeout": "3s", "known_hosts": "/home/me/.ssh/known_hosts",
			},
			want: remote.SSHOptions{
				Host:           "example.com",
				Port:           2222,
				User:           "deploy",
				Password:       "secret",
				KnownHostsFile: "/home/me/.ssh/known_hosts",
				Timeout:        3 * time.Second,
			},
		},
		{
			name:        "missing_host",
			opts:        map[string]string{"user": "deploy", "password": "x"},
			errContains: "option host is required",
		},
		{
			name:        "missing_credentials",
			opts:        map[string]string{"host": "h", "user": "deploy"},
			errContains: "option password or key_file is required",
		},
		{
			name:        "bad_port",
			opts:        map[string]string{"host": "h", "user": "u", "password": "p", "port": "99999"},
			errContains: "invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := remote.SSHOptionsFrom(tt.opts)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialSSHFailsForMissingKey(t *testing.T) {
	_, err := remote.DialSSH(context.Background(), remote.SSHOptions{
		Host:    "127.0.0.1",
		Port:    22,
		User:    "deploy",
		KeyFile: "/does/not/exist",
		Timeout: time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading key file")
}
