package datasets

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".ppm": true, ".bmp": true,
	".tif": true, ".tiff": true, ".gif": true, ".webp": true,
}

func isImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// MakeDataset lists the image files of source, which is either a directory
// (walked recursively), a list file (.flist or .txt, one path per line) or a
// glob pattern. Paths are returned sorted.
func MakeDataset(source string) ([]string, error) {
	if source == "" {
		return nil, errors.New("empty image source")
	}
	info, err := os.Stat(source)
	switch {
	case err == nil && info.IsDir():
		return walkImages(source)
	case err == nil && isListFile(source):
		return readList(source)
	case err == nil:
		return []string{source}, nil
	}

	matches, gerr := filepath.Glob(source)
	if gerr != nil {
		return nil, errors.Wrapf(gerr, "failed to glob pattern %s", source)
	}
	if len(matches) == 0 {
		return nil, errors.Errorf("no images found at %s", source)
	}
	var paths []string
	for _, m := range matches {
		if isImageFile(m) {
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func isListFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".flist" || ext == ".txt"
}

func walkImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isImageFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// readList reads one path per line; blank lines and lines starting with '#'
// are skipped. Relative paths are taken as they are written.
func readList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open list %s", path)
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read list %s", path)
	}
	sort.Strings(paths)
	return paths, nil
}
