package imaging

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	imgproc "github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/client"
	"github.com/ib-77/ropchain/pkg/rop"
	"github.com/ib-77/ropchain/pkg/rop/solo"
	"github.com/ib-77/ropchain/pkg/stage"
)

const (
	KeyImageURI  = client.KeyImageURI
	KeyBlurLevel = client.KeyBlurLevel
	KeyRunID     = client.KeyRunID
)

const (
	blurOutputPrefix = "blur-filter-output-"
	savedPrefix      = "blurred-image-"
	savedTimeLayout  = "20060102-150405.000000000"
)

// DefaultStaleAfter is how old another run's scratch files must be before
// Cleanup removes them.
const DefaultStaleAfter = time.Hour

var (
	// ImageContract is exchanged between the transform and persist stages.
	ImageContract = stage.Contract{Name: "image", Version: 1, Keys: []string{KeyImageURI}}

	// cleanupContract carries no keys: the cleanup output cannot feed a
	// stage that needs an image.
	cleanupContract = stage.Contract{Name: "image", Version: 1}
)

// runDir is the scratch directory of the run named by RUN_ID, or workDir
// itself when the bundle carries no run id.
func runDir(workDir string, in bundle.Bundle) (string, error) {
	id, ok, err := in.GetString(KeyRunID)
	if err != nil {
		return "", errors.Mark(err, stage.ErrInvalidInput)
	}
	if !ok || id == "" {
		return workDir, nil
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", stage.InvalidInput("invalid run id %q", id)
	}
	return filepath.Join(workDir, id), nil
}

// Cleanup removes previous transform outputs and succeeds with an empty
// bundle. Files of its own run are always removed. Files of other runs are
// removed only once they are older than StaleAfter, so chains running at
// the same time keep their intermediates.
type Cleanup struct {
	WorkDir    string
	StaleAfter time.Duration
	Now        func() time.Time
	Log        zerolog.Logger
}

func (c *Cleanup) Name() string { return "Cleanup" }

func (c *Cleanup) Schema() stage.Schema {
	return stage.Schema{Output: cleanupContract}
}

func (c *Cleanup) Execute(ctx context.Context, in bundle.Bundle) stage.Outcome {
	return stage.Run(ctx, in, func(ctx context.Context, in bundle.Bundle) (bundle.Bundle, error) {
		own, err := runDir(c.WorkDir, in)
		if err != nil {
			return bundle.Bundle{}, err
		}
		entries, err := os.ReadDir(c.WorkDir)
		if errors.Is(err, os.ErrNotExist) {
			return bundle.Empty(), nil
		}
		if err != nil {
			return bundle.Bundle{}, stage.Fault(err, "list work dir")
		}

		staleAfter := c.StaleAfter
		if staleAfter <= 0 {
			staleAfter = DefaultStaleAfter
		}
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		cutoff := now().Add(-staleAfter)

		removed := 0
		for _, e := range entries {
			path := filepath.Join(c.WorkDir, e.Name())
			if !e.IsDir() && !strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
				continue
			}
			mine := path == own || (!e.IsDir() && own == c.WorkDir)
			if !mine {
				info, err := e.Info()
				if err != nil || info.ModTime().After(cutoff) {
					continue
				}
			}
			if err := os.RemoveAll(path); err != nil {
				return bundle.Bundle{}, stage.Fault(err, "remove "+e.Name())
			}
			removed++
		}
		c.Log.Debug().Str("dir", c.WorkDir).Str("run", filepath.Base(own)).Int("removed", removed).Msg("work dir cleaned")
		return bundle.Empty(), nil
	})
}

// Blur reads IMAGE_URI, blurs the image at BLUR_LEVEL and writes the result
// to the run's scratch directory under WorkDir.
type Blur struct {
	Resolver Resolver
	WorkDir  string
	Notifier Notifier
	Log      zerolog.Logger
}

type blurJob struct {
	source string
	path   string
	dir    string
	level  int
}

type blurredImage struct {
	job blurJob
	img *image.NRGBA
}

func (b *Blur) Name() string { return "Blur" }

func (b *Blur) Schema() stage.Schema {
	return stage.Schema{Input: ImageContract, Output: ImageContract}
}

func (b *Blur) Execute(ctx context.Context, in bundle.Bundle) stage.Outcome {
	return stage.Run(ctx, in, func(ctx context.Context, in bundle.Bundle) (bundle.Bundle, error) {
		job := solo.Try(ctx, rop.Success(in), b.prepare)
		blurred := solo.Try(ctx, job, b.blur)
		uri := solo.Try(ctx, blurred, b.write)
		solo.Tee(ctx, uri, func(ctx context.Context, r rop.Result[string]) {
			if b.Notifier != nil {
				b.Notifier.Notify(ctx, "Output is "+r.Result())
			}
		})
		out := solo.Map(ctx, uri, imageBundle)
		return out.Result(), out.Err()
	})
}

func (b *Blur) prepare(_ context.Context, in bundle.Bundle) (blurJob, error) {
	locator, err := stage.RequireString(in, KeyImageURI)
	if err != nil {
		return blurJob{}, err
	}
	level, err := stage.OptionalInt(in, KeyBlurLevel, MinBlurLevel)
	if err != nil {
		return blurJob{}, err
	}
	dir, err := runDir(b.WorkDir, in)
	if err != nil {
		return blurJob{}, err
	}
	path, err := b.Resolver.Path(locator)
	if err != nil {
		return blurJob{}, err
	}
	return blurJob{source: locator, path: path, dir: dir, level: ClampLevel(level)}, nil
}

func (b *Blur) blur(ctx context.Context, job blurJob) (blurredImage, error) {
	picture, err := imgproc.Open(job.path)
	if err != nil {
		return blurredImage{}, stage.Fault(err, "decode image "+filepath.Base(job.path))
	}
	if err := ctx.Err(); err != nil {
		return blurredImage{}, err
	}
	return blurredImage{job: job, img: Blurred(picture, job.level)}, nil
}

func (b *Blur) write(_ context.Context, bi blurredImage) (string, error) {
	if err := os.MkdirAll(bi.job.dir, 0o755); err != nil {
		return "", stage.Fault(err, "create work dir")
	}
	out := filepath.Join(bi.job.dir, blurOutputPrefix+uuid.NewString()+".png")
	if err := imgproc.Save(bi.img, out); err != nil {
		_ = os.Remove(out)
		return "", stage.Fault(err, "encode png")
	}
	uri := FileURI(out)
	b.Log.Debug().Str("source", bi.job.source).Int("level", bi.job.level).Str("output", uri).Msg("image blurred")
	return uri, nil
}

// Save copies the image at IMAGE_URI into the output directory.
type Save struct {
	Resolver  Resolver
	OutputDir string
	Now       func() time.Time
	Log       zerolog.Logger
}

func (s *Save) Name() string { return "Save" }

func (s *Save) Schema() stage.Schema {
	return stage.Schema{Input: ImageContract, Output: ImageContract}
}

func (s *Save) Execute(ctx context.Context, in bundle.Bundle) stage.Outcome {
	return stage.Run(ctx, in, func(ctx context.Context, in bundle.Bundle) (bundle.Bundle, error) {
		src := solo.Try(ctx, rop.Success(in), s.source)
		saved := solo.Switch(ctx, src, s.persist)
		out := solo.Map(ctx, saved, imageBundle)
		return out.Result(), out.Err()
	})
}

func (s *Save) source(_ context.Context, in bundle.Bundle) (string, error) {
	locator, err := stage.RequireString(in, KeyImageURI)
	if err != nil {
		return "", err
	}
	return s.Resolver.Path(locator)
}

func (s *Save) persist(_ context.Context, src string) rop.Result[string] {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	dst := filepath.Join(s.OutputDir, savedPrefix+now().UTC().Format(savedTimeLayout)+".png")
	if err := copyFile(src, dst); err != nil {
		return rop.Fail[string](err)
	}
	uri := FileURI(dst)
	s.Log.Info().Str("output", uri).Msg("image saved")
	return rop.Success(uri)
}

func imageBundle(_ context.Context, uri string) bundle.Bundle {
	return bundle.NewBuilder().PutString(KeyImageURI, uri).Build()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return stage.Fault(err, "open image")
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return stage.Fault(err, "create output dir")
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return stage.Fault(err, "create saved image")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return stage.Fault(err, "copy image")
	}
	return stage.Fault(out.Close(), "close saved image")
}
