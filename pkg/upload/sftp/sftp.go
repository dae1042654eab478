// Package sftp uploads over SFTP (targets of type "sftp").
package sftp

import (
	"context"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/remote"
	"github.com/walteh/deployrc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

func init() {
	upload.Register("sftp", New())
}

// 🔐 Plugin writes files below the "dir" option on the host given by the target's ssh options
type Plugin struct {
	Connect func(ctx context.Context, o remote.SSHOptions) (remote.FileWriter, error)
}

// 🏭 New creates a new sftp plugin
func New() *Plugin {
	return &Plugin{Connect: remote.NewFileWriter}
}

// Name implements upload.Plugin
func (p *Plugin) Name() string {
	return "sftp"
}

// UploadFiles implements upload.Plugin. One connection serves all units of the call.
func (p *Plugin) UploadFiles(ctx context.Context, uc *upload.Context) error {
	o, err := remote.SSHOptionsFrom(uc.Target.Options)
	if err != nil {
		return errors.Errorf("reading ssh options: %w", err)
	}

	dir := strings.TrimSpace(uc.Target.Option("dir", "/"))

	w, err := p.Connect(ctx, o)
	if err != nil {
		return errors.Errorf("connecting to %s: %w", o.Host, err)
	}
	defer w.Close()

	failed := upload.UploadEach(ctx, uc, func(ctx context.Context, u *upload.Unit, data []byte) error {
		return w.WriteFile(ctx, path.Join(dir, u.RemotePath()), data)
	})

	zerolog.Ctx(ctx).Debug().Str("host", o.Host).Str("dir", dir).Int("files", len(uc.Units)).Int("failed", failed).Msg("sftp upload finished")
	return nil
}
