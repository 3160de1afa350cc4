// Package corpus acquires and preprocesses the parallel training corpus:
// newline-delimited, tab-separated sentence pairs, fetched from a remote
// archive when not already on disk.
package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nmtgo/translator/internal/downloader"
	"github.com/nmtgo/translator/internal/files"
	"github.com/nmtgo/translator/texts"
)

// DefaultArchiveBaseURL hosts the <lang1>-<lang2>.zip corpus archives.
const DefaultArchiveBaseURL = "http://storage.googleapis.com/download.tensorflow.org/data"

// DefaultDirCreationPerm is the permission used when creating directories.
const DefaultDirCreationPerm = os.FileMode(0755)

// Loader locates, downloads and parses the corpus for one language pair.
type Loader struct {
	// DataDir is where raw corpus files, archives and caches live.
	DataDir string

	// BaseURL overrides DefaultArchiveBaseURL when non-empty.
	BaseURL string

	// Limit caps the number of pairs read; 0 reads all.
	Limit int

	downloadManager *downloader.Manager
}

// NewLoader returns a Loader rooted at dataDir.
func NewLoader(dataDir string) *Loader {
	return &Loader{DataDir: dataDir}
}

// Load returns aligned, preprocessed source and target sentences for a
// language pair like "eng-fra". The raw file is fetched and extracted from
// the remote archive if absent; preprocessed pairs are cached in a parquet
// file next to it and reused on later runs.
func (l *Loader) Load(ctx context.Context, langPair string) (source, target []string, err error) {
	lang1, lang2, err := splitPair(langPair)
	if err != nil {
		return nil, nil, err
	}
	// Archives are named by the foreign language: eng-fra lives in fra-eng.zip
	// and extracts to fra.txt.
	if lang1 == "eng" {
		lang1, lang2 = lang2, lang1
	}

	rawPath := filepath.Join(l.DataDir, lang1+".txt")
	if pairs, ok := l.loadCache(langPair, rawPath); ok {
		return split(pairs, langPair)
	}

	if !files.Exists(rawPath) {
		if err := l.fetch(ctx, lang1, lang2); err != nil {
			return nil, nil, err
		}
		if !files.Exists(rawPath) {
			return nil, nil, errors.Errorf("archive for %q did not contain %s", langPair, filepath.Base(rawPath))
		}
	}

	pairs, err := l.parse(rawPath)
	if err != nil {
		return nil, nil, err
	}
	l.saveCache(langPair, pairs)
	return split(pairs, langPair)
}

// fetch downloads and extracts the <lang1>-<lang2>.zip archive into DataDir.
// The download is guarded by a file lock so concurrent processes fetch once.
func (l *Loader) fetch(ctx context.Context, lang1, lang2 string) error {
	archive := lang1 + "-" + lang2 + ".zip"
	baseURL := l.BaseURL
	if baseURL == "" {
		baseURL = DefaultArchiveBaseURL
	}
	url := baseURL + "/" + archive
	archivePath := filepath.Join(l.DataDir, archive)

	if err := l.lockedDownload(ctx, url, archivePath); err != nil {
		return err
	}
	return extractZip(archivePath, l.DataDir)
}

// lockedDownload fetches url to filePath, downloading to filePath+".downloading"
// first and atomically renaming. A filePath+".lock" file coordinates multiple
// processes fetching the same archive.
func (l *Loader) lockedDownload(ctx context.Context, url, filePath string) error {
	if files.Exists(filePath) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "creating directory for %q", filePath)
	}

	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(lockPath, func() {
		if files.Exists(filePath) {
			// Some concurrent process already downloaded the file.
			return
		}
		tmpPath := filePath + ".downloading"
		klog.Infof("Downloading %s", url)
		if l.downloadManager == nil {
			l.downloadManager = downloader.New()
		}
		mainErr = l.downloadManager.Download(ctx, url, tmpPath, nil)
		if mainErr != nil {
			_ = os.Remove(tmpPath)
			mainErr = errors.WithMessagef(mainErr, "while downloading %q to %q", url, tmpPath)
			return
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "moving downloaded file %q to %q", tmpPath, filePath)
			return
		}
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("error removing lock file %q: %+v", lockPath, err)
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q to download %q", lockPath, url)
	}
	return nil
}

// execOnFileLock opens (creating if needed) and locks lockPath, then executes
// fn. If the lock is held elsewhere, it polls with a 1 to 2 second period.
func execOnFileLock(lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil && err == nil {
			err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
		}
	}()
	fn()
	return
}

// extractZip extracts every regular file of the archive into destDir,
// flattening any directory structure. Corpus archives hold a single .txt
// plus an _about.txt.
func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrapf(err, "opening archive %q", archivePath)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		if err := extractZipFile(f, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "opening %q inside archive", f.Name)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(destPath)
	if err != nil {
		return errors.Wrapf(err, "creating %q", destPath)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.Wrapf(err, "extracting %q to %q", f.Name, destPath)
	}
	return out.Close()
}

// parse memory-maps the raw corpus file and returns preprocessed pairs in
// file order, honoring Limit.
func (l *Loader) parse(rawPath string) ([]Pair, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening corpus %q", rawPath)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stating corpus %q", rawPath)
	}
	if info.Size() == 0 {
		return nil, errors.Errorf("corpus %q is empty", rawPath)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "memory-mapping corpus %q", rawPath)
	}
	defer func() { _ = m.Unmap() }()

	var pairs []Pair
	for _, line := range bytes.Split(m, []byte{'\n'}) {
		if l.Limit > 0 && len(pairs) >= l.Limit {
			break
		}
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		columns := strings.SplitN(string(line), "\t", 3)
		if len(columns) < 2 {
			continue
		}
		pairs = append(pairs, Pair{
			First:  texts.Preprocess(columns[0]),
			Second: texts.Preprocess(columns[1]),
		})
	}
	if len(pairs) == 0 {
		return nil, errors.Errorf("no tab-separated pairs found in %q", rawPath)
	}
	return pairs, nil
}

// split orients pairs: the first column of the corpus files is always
// English, so for "eng-*" pairs it is the source, otherwise the target.
func split(pairs []Pair, langPair string) (source, target []string, err error) {
	source = make([]string, len(pairs))
	target = make([]string, len(pairs))
	engFirst := strings.HasPrefix(langPair, "eng-")
	for i, p := range pairs {
		if engFirst {
			source[i], target[i] = p.First, p.Second
		} else {
			source[i], target[i] = p.Second, p.First
		}
	}
	return source, target, nil
}

func splitPair(langPair string) (string, string, error) {
	parts := strings.Split(langPair, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("invalid language pair %q, want e.g. \"eng-fra\"", langPair)
	}
	return parts[0], parts[1], nil
}
