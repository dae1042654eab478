package upload

import (
	"context"

	"github.com/rs/zerolog"
)

// PutFunc stores the content of one unit at its remote location
type PutFunc func(ctx context.Context, u *Unit, data []byte) error

// 🔁 UploadEach is the per-file loop shared by the plugins: before hook, read and transform,
// put, completed hook. A failing file does not stop its siblings; only ctx ends the loop early.
// The number of failed units is returned.
func UploadEach(ctx context.Context, uc *Context, put PutFunc) int {
	logger := zerolog.Ctx(ctx)
	failed := 0

	for _, u := range uc.Units {
		if ctx.Err() != nil {
			break
		}

		u.BeforeUpload(ctx, "")

		err := func() error {
			data, err := u.Read(ctx)
			if err != nil {
				return err
			}
			return put(ctx, u, data)
		}()
		if err != nil {
			failed++
			logger.Debug().Err(err).Str("file", u.File).Str("remote", u.RemotePath()).Msg("upload failed")
		}

		u.UploadCompleted(ctx, err)
	}

	return failed
}
