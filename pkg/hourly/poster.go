// Package hourly posts webcam snapshots: it uploads the images, tweets a dated
// status with the media attached and optionally removes the tweet again.
package hourly

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/weiland/HourlyImage/pkg/twitter"
	"github.com/weiland/HourlyImage/pkg/utils/debug"
	"github.com/weiland/HourlyImage/pkg/utils/errors"
	"github.com/weiland/HourlyImage/pkg/utils/metrics"
)

// MaxImages is the number of media ids a single status accepts.
const MaxImages = 4

const defaultUploadConcurrency = 4

// API is the part of the twitter client the poster uses.
type API interface {
	UploadMedia(ctx context.Context, media twitter.MediaUpload) (*twitter.JSONResponse, error)
	UpdateStatus(ctx context.Context, update twitter.StatusUpdate) (*twitter.JSONResponse, error)
	DestroyStatus(ctx context.Context, id string) (*twitter.JSONResponse, error)
}

var _ API = (*twitter.Client)(nil)

type PosterConfig struct {
	API API
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// DateLayout formats the posting time into the status text.
	DateLayout string
	// Note is appended to the status in parentheses when set.
	Note             string
	Coordinates      *twitter.Coordinates
	MediaCategory    string
	AdditionalOwners []string
	// UploadConcurrency bounds parallel uploads, default 4.
	UploadConcurrency int
	// DeleteAfterPost destroys the status right after posting. The
	// DEBUG_DELETE_AFTER_POST toggle forces it on.
	DeleteAfterPost bool
	Now             func() time.Time
	Metrics         *metrics.MetricsCollector
}

// Poster turns image files into a status update.
type Poster struct {
	api              API
	fs               afero.Fs
	dateLayout       string
	note             string
	coordinates      *twitter.Coordinates
	mediaCategory    string
	additionalOwners []string
	concurrency      int
	deleteAfterPost  bool
	now              func() time.Time
	metrics          *metrics.MetricsCollector
}

// Result describes a completed post.
type Result struct {
	StatusID string
	Status   string
	MediaIDs []string
	Deleted  bool
}

func NewPoster(config *PosterConfig) (*Poster, error) {
	if config == nil || config.API == nil {
		return nil, errors.Configuration("poster needs an api client", nil)
	}
	if config.DateLayout == "" {
		return nil, errors.Configuration("poster needs a date layout", nil)
	}

	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	concurrency := config.UploadConcurrency
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Poster{
		api:              config.API,
		fs:               fs,
		dateLayout:       config.DateLayout,
		note:             config.Note,
		coordinates:      config.Coordinates,
		mediaCategory:    config.MediaCategory,
		additionalOwners: config.AdditionalOwners,
		concurrency:      concurrency,
		deleteAfterPost:  config.DeleteAfterPost || debug.IsDebugDeleteAfterPost(),
		now:              now,
		metrics:          config.Metrics,
	}, nil
}

// StatusText renders the status for t: the formatted date, followed by the note
// in parentheses when one is configured.
func (p *Poster) StatusText(t time.Time) string {
	status := t.Format(p.dateLayout)
	if note := strings.TrimSpace(p.note); note != "" {
		status += " (" + note + ")"
	}
	return status
}

// UploadImages uploads every file concurrently and returns the media ids in the
// order of paths. The first failure cancels the remaining uploads.
func (p *Poster) UploadImages(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, errors.Validation("no images to upload")
	}
	if len(paths) > MaxImages {
		return nil, errors.Validation(fmt.Sprintf("a status takes at most %d images, got %d", MaxImages, len(paths)))
	}

	ids := make([]string, len(paths))
	var uploaded atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			id, size, err := p.uploadImage(ctx, path)
			if err != nil {
				return err
			}
			ids[i] = id
			uploaded.Add(int64(size))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.SetGauge(metrics.MetricUploadedBytes, uploaded.Load())
	}
	return ids, nil
}

func (p *Poster) uploadImage(ctx context.Context, path string) (string, int, error) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return "", 0, errors.Validation(fmt.Sprintf("read image %s: %v", path, err))
	}
	if len(data) == 0 {
		return "", 0, errors.Validation(fmt.Sprintf("image %s is empty", path))
	}

	start := time.Now()
	resp, err := p.api.UploadMedia(ctx, twitter.MediaUpload{
		Data:             base64.StdEncoding.EncodeToString(data),
		Category:         p.mediaCategory,
		AdditionalOwners: p.additionalOwners,
	})
	if p.metrics != nil {
		p.metrics.RecordLatency(metrics.MetricMediaUpload, time.Since(start))
		p.metrics.IncrementCounter(metrics.MetricMediaUpload)
	}
	if err != nil {
		errType := errors.TypeOf(err)
		if errType == "" {
			errType = errors.TypeTransport
		}
		return "", 0, errors.Wrap(err, errType, fmt.Sprintf("upload %s", filepath.Base(path)))
	}

	id, ok := resp.MediaID.Get()
	if !ok || id == "" {
		return "", 0, errors.New(errors.TypeAPI, fmt.Sprintf("upload of %s returned no media id", filepath.Base(path)), nil)
	}
	slog.Info("uploaded image", "path", path, "media_id", id, "bytes", len(data))
	return id, len(data), nil
}

// Post uploads the images, posts the status and, when configured, destroys it
// again.
func (p *Poster) Post(ctx context.Context, paths []string) (*Result, error) {
	mediaIDs, err := p.UploadImages(ctx, paths)
	if err != nil {
		return nil, err
	}

	status := p.StatusText(p.now())
	start := time.Now()
	resp, err := p.api.UpdateStatus(ctx, twitter.StatusUpdate{
		Status:      status,
		MediaIDs:    mediaIDs,
		Coordinates: p.coordinates,
	})
	if p.metrics != nil {
		p.metrics.RecordLatency(metrics.MetricStatusUpdate, time.Since(start))
		p.metrics.IncrementCounter(metrics.MetricStatusUpdate)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		StatusID: resp.ID.OrElse(""),
		Status:   status,
		MediaIDs: mediaIDs,
	}
	slog.Info("posted status", "id", result.StatusID, "media", len(mediaIDs))

	if !p.deleteAfterPost {
		return result, nil
	}
	if result.StatusID == "" {
		return result, errors.New(errors.TypeAPI, "status response has no id, cannot delete it", nil)
	}
	if _, err := p.api.DestroyStatus(ctx, result.StatusID); err != nil {
		return result, err
	}
	result.Deleted = true
	slog.Info("destroyed status", "id", result.StatusID)
	return result, nil
}

// LatestImage returns the most recently modified file in dir with the given
// extension. Names break ties, later names first.
func LatestImage(fs afero.Fs, dir, extension string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", errors.Configuration(fmt.Sprintf("read image directory %s", dir), err)
	}

	suffix := "." + strings.TrimPrefix(strings.ToLower(extension), ".")
	candidates := entries[:0]
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), suffix) {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		return "", errors.Validation(fmt.Sprintf("no *%s images in %s", suffix, dir))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ModTime().Equal(candidates[j].ModTime()) {
			return candidates[i].ModTime().After(candidates[j].ModTime())
		}
		return candidates[i].Name() > candidates[j].Name()
	})
	return filepath.Join(dir, candidates[0].Name()), nil
}
