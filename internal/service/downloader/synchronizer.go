package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/oshokin/dmd-downloader/internal/domain/release"
	"github.com/oshokin/dmd-downloader/internal/logger"
	"github.com/oshokin/dmd-downloader/internal/store"
)

const (
	// DefaultProbeTimeout bounds a freshness probe.
	DefaultProbeTimeout = 30 * time.Second

	// DefaultDownloadTimeout bounds a single file download.
	DefaultDownloadTimeout = 30 * time.Minute

	// TimestampLayout formats completion timestamps in logs.
	TimestampLayout = "2006-01-02 15:04:05 MST"

	// userAgent is sent with every file request.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var (
	// ErrBadHTTPStatus is returned for non-2xx file responses.
	ErrBadHTTPStatus = errors.New("unexpected http status")

	// errMalformedLastModified is a probe failure caused by an unparsable date.
	errMalformedLastModified = errors.New("malformed Last-Modified header")
)

// SyncOptions selects which parts of a release are handled.
type SyncOptions struct {
	// IncludeChecksum fetches the checksum companion when the release has one.
	IncludeChecksum bool
	// IncludeSignature fetches the signature companion when the release has one.
	IncludeSignature bool
	// ExtractAfterDownload unpacks the primary archive once it is on disk.
	ExtractAfterDownload bool
}

// Synchronizer brings the files of a release into the archive store.
// It needs a store backed by the host filesystem because the writability
// check before each download runs on host paths.
type Synchronizer struct {
	store           *store.Store
	httpClient      *http.Client
	progress        io.Writer
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	now             func() time.Time
	location        *time.Location
	redact          func(string) string
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithHTTPClient replaces the HTTP client used for probes and downloads.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Synchronizer) {
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

// WithProgressWriter draws download progress on w. Nil disables the bar.
func WithProgressWriter(w io.Writer) Option {
	return func(s *Synchronizer) {
		s.progress = w
	}
}

// WithProbeTimeout bounds each freshness probe.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(s *Synchronizer) {
		if timeout > 0 {
			s.probeTimeout = timeout
		}
	}
}

// WithDownloadTimeout bounds each download.
func WithDownloadTimeout(timeout time.Duration) Option {
	return func(s *Synchronizer) {
		if timeout > 0 {
			s.downloadTimeout = timeout
		}
	}
}

// WithClock replaces the time source of completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone of completion timestamps.
func WithLocation(location *time.Location) Option {
	return func(s *Synchronizer) {
		if location != nil {
			s.location = location
		}
	}
}

// WithRedactor hides secrets embedded in file URLs before they are logged.
func WithRedactor(redact func(string) string) Option {
	return func(s *Synchronizer) {
		if redact != nil {
			s.redact = redact
		}
	}
}

// NewSynchronizer creates a synchronizer writing into st.
func NewSynchronizer(st *store.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:           st,
		httpClient:      http.DefaultClient,
		probeTimeout:    DefaultProbeTimeout,
		downloadTimeout: DefaultDownloadTimeout,
		now:             time.Now,
		location:        time.UTC,
		redact:          func(s string) string { return s },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// remoteMeta is what a HEAD probe tells about a remote file.
type remoteMeta struct {
	// size is the declared Content-Length, -1 when absent.
	size int64
	// lastModified is zero when the header is absent.
	lastModified time.Time
}

// NeedsDownload reports whether fileName has to be fetched from remoteURL.
// Every failure to decide answers true.
func (s *Synchronizer) NeedsDownload(ctx context.Context, fileName, remoteURL string) bool {
	rel, err := s.store.DownloadPath(fileName)
	if err != nil {
		logger.WarnKV(ctx, "Invalid local file name, downloading", "file", fileName, "error", err)
		return true
	}

	info, err := s.store.Stat(rel)
	if errors.Is(err, os.ErrNotExist) {
		logger.DebugKV(ctx, "File is not present locally", "file", fileName)
		return true
	}

	if err != nil {
		logger.WarnKV(ctx, "Unable to inspect local file, downloading", "file", fileName, "error", err)
		return true
	}

	meta, err := s.probe(ctx, remoteURL)
	if err != nil {
		logger.WarnKV(ctx, "Freshness check failed, downloading",
			"file", fileName, "url", s.redact(remoteURL), "error", s.redact(err.Error()))

		return true
	}

	stale, reason := isStale(info.Size(), info.ModTime(), meta)
	if stale {
		logger.InfoKV(ctx, "Local file is out of date", "file", fileName, "reason", reason)
	}

	return stale
}

// isStale compares a local copy against the probed remote file.
// An unknown remote size counts as a difference.
func isStale(localSize int64, localModTime time.Time, remote remoteMeta) (bool, string) {
	if remote.size < 0 {
		return true, "remote size unknown"
	}

	if remote.size != localSize {
		return true, fmt.Sprintf("size %d differs from remote %d", localSize, remote.size)
	}

	if !remote.lastModified.IsZero() && remote.lastModified.UTC().After(localModTime.UTC()) {
		return true, "remote copy is newer"
	}

	return false, ""
}

// probe issues a HEAD request for remoteURL.
func (s *Synchronizer) probe(ctx context.Context, remoteURL string) (remoteMeta, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, remoteURL, http.NoBody)
	if err != nil {
		return remoteMeta{}, err
	}

	req.Header.Set("User-Agent", userAgent)

	response, err := s.httpClient.Do(req)
	if err != nil {
		return remoteMeta{}, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return remoteMeta{}, fmt.Errorf("%s: %w", response.Status, ErrBadHTTPStatus)
	}

	meta := remoteMeta{size: response.ContentLength}

	if value := response.Header.Get("Last-Modified"); value != "" {
		meta.lastModified, err = http.ParseTime(value)
		if err != nil {
			return remoteMeta{}, fmt.Errorf("%q: %w", value, errMalformedLastModified)
		}
	}

	return meta, nil
}

// DownloadFile makes downloads/<fileName> current with remoteURL.
// An up-to-date local copy counts as success.
func (s *Synchronizer) DownloadFile(ctx context.Context, remoteURL, fileName string) bool {
	return !s.download(ctx, remoteURL, fileName).IsFailure()
}

// download runs the freshness check and fetch of one file and returns its final state.
func (s *Synchronizer) download(ctx context.Context, remoteURL, fileName string) release.State {
	s.transition(ctx, fileName, release.CheckingFreshness)

	if !s.NeedsDownload(ctx, fileName, remoteURL) {
		logger.InfoKV(ctx, "File is already up to date, skipping download", "file", fileName)
		s.transition(ctx, fileName, release.Skipped)

		return release.Skipped
	}

	s.transition(ctx, fileName, release.Downloading)
	logger.InfoKV(ctx, "Downloading file", "file", fileName, "url", s.redact(remoteURL))

	written, err := s.fetch(ctx, remoteURL, fileName)
	if err != nil {
		logger.ErrorKV(ctx, "Error downloading file",
			"file", fileName, "url", s.redact(remoteURL), "error", s.redact(err.Error()))
		s.transition(ctx, fileName, release.DownloadFailed)

		return release.DownloadFailed
	}

	logger.InfoKV(ctx, "Download completed", "file", fileName, "bytes", written, "at", s.Timestamp())
	s.transition(ctx, fileName, release.Downloaded)

	return release.Downloaded
}

// fetch streams remoteURL into downloads/<fileName> and returns the number of bytes received.
func (s *Synchronizer) fetch(ctx context.Context, remoteURL, fileName string) (int64, error) {
	rel, err := s.store.DownloadPath(fileName)
	if err != nil {
		return 0, err
	}

	if err = s.store.EnsureDir(store.DownloadsDir); err != nil {
		return 0, err
	}

	if err = checkWritable(s.store.RealPath(rel)); err != nil {
		return 0, err
	}

	downloadCtx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, remoteURL, http.NoBody)
	if err != nil {
		return 0, err
	}

	req.Header.Set("User-Agent", userAgent)

	response, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("%s: %w", response.Status, ErrBadHTTPStatus)
	}

	var body io.Reader = response.Body

	if bar := newProgressBar(s.progress, response.ContentLength, fileName); bar != nil {
		body = io.TeeReader(response.Body, bar)

		defer func() {
			_ = bar.Close()
		}()
	}

	written, err := s.store.WriteFile(rel, body)
	if err != nil {
		return written, fmt.Errorf("write %s: %w", rel, err)
	}

	return written, nil
}

// ExtractArchive unpacks a store-relative archive into extracted/<stem>.
func (s *Synchronizer) ExtractArchive(ctx context.Context, archivePath string) bool {
	logger.InfoKV(ctx, "Extracting archive", "archive", archivePath)

	dest, written, err := s.store.Extract(archivePath)
	if err != nil {
		logger.ErrorKV(ctx, "Error extracting archive", "archive", archivePath, "destination", dest, "error", err)
		return false
	}

	logger.InfoKV(ctx, "Extraction completed",
		"archive", archivePath, "destination", dest, "files", written, "at", s.Timestamp())

	return true
}

// SyncRelease handles the archive and the selected companions of rel.
// Every selected step runs even when an earlier one failed.
func (s *Synchronizer) SyncRelease(ctx context.Context, rel release.Release, opts SyncOptions) release.Outcome {
	ctx = logger.WithKV(ctx, "release_id", string(rel.ID))
	outcome := release.Outcome{Release: rel}

	logger.InfoKV(ctx, "Processing release", "name", rel.Name, "release_date", rel.ReleaseDate)

	if rel.HasArchive() {
		state := s.download(ctx, rel.ArchiveFileURL, rel.ArchiveFileName)
		if opts.ExtractAfterDownload && state.IsAvailable() {
			state = s.extract(ctx, rel.ArchiveFileName)
		}

		outcome.Files = append(outcome.Files, release.FileOutcome{
			Kind:     release.KindArchive,
			FileName: rel.ArchiveFileName,
			State:    state,
		})
	} else {
		logger.Warn(ctx, "Release has no archive")
	}

	if opts.IncludeChecksum && rel.HasChecksum() {
		outcome.Files = append(outcome.Files, release.FileOutcome{
			Kind:     release.KindChecksum,
			FileName: rel.ChecksumFileName,
			State:    s.download(ctx, rel.ChecksumFileURL, rel.ChecksumFileName),
		})
	}

	if opts.IncludeSignature && rel.HasSignature() {
		outcome.Files = append(outcome.Files, release.FileOutcome{
			Kind:     release.KindSignature,
			FileName: rel.SignatureFileName,
			State:    s.download(ctx, rel.SignatureFileURL, rel.SignatureFileName),
		})
	}

	return outcome
}

// extract unpacks a downloaded archive and returns its final state.
func (s *Synchronizer) extract(ctx context.Context, fileName string) release.State {
	rel, err := s.store.DownloadPath(fileName)
	if err != nil {
		logger.ErrorKV(ctx, "Error extracting archive", "file", fileName, "error", err)
		return release.ExtractFailed
	}

	s.transition(ctx, fileName, release.Extracting)

	if !s.ExtractArchive(ctx, rel) {
		s.transition(ctx, fileName, release.ExtractFailed)
		return release.ExtractFailed
	}

	s.transition(ctx, fileName, release.Extracted)

	return release.Extracted
}

// Timestamp formats the current time in the configured timezone.
func (s *Synchronizer) Timestamp() string {
	return s.now().In(s.location).Format(TimestampLayout)
}

func (s *Synchronizer) transition(ctx context.Context, fileName string, state release.State) {
	logger.DebugKV(ctx, "File state changed", "file", fileName, "state", state.String())
}
