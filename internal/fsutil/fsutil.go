// Package fsutil holds the small file system helpers shared by the converter packages.
package fsutil

import (
	"io"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ReportError logs an error if it is not nil, but otherwise does nothing.
//
// It is meant for deferred cleanups, whose errors can't be returned.
func ReportError(err error) {
	if err != nil {
		klog.Warningf("Error: %v", err)
	}
}

// ReplaceTildeInDir by the user's home directory. Returns dir if it doesn't start with "~".
//
// It returns an error if `dir` has an unknown user (e.g: `~unknown/...`).
func ReplaceTildeInDir(dir string) (string, error) {
	if len(dir) == 0 || dir[0] != '~' {
		return dir, nil
	}
	var userName string
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		sepIdx := strings.IndexRune(dir, '/')
		if sepIdx == -1 {
			userName = dir[1:]
		} else {
			userName = dir[1:sepIdx]
		}
	}
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", dir)
	}
	return path.Join(usr.HomeDir, dir[1+len(userName):]), nil
}

// Exists returns whether filePath exists. Errors other than "not exist" are returned.
func Exists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %q", filePath)
}

// RemoveIfExists removes filePath, and it is not an error if it doesn't exist.
// It returns whether the file was there.
func RemoveIfExists(filePath string) (bool, error) {
	err := os.Remove(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to remove %q", filePath)
}

// CopyFile copies the contents of src to dst, creating or truncating dst.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q for copying", src)
	}
	defer func() { ReportError(in.Close()) }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", dst)
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "failed to copy %q to %q", src, dst)
	}
	if err = out.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %q", dst)
	}
	return nil
}

// ResetDir removes everything under dir, and (re-)creates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "failed to remove directory %s", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}

// Glob returns the files in dir with the given extension (including the "."), sorted by name.
// Sub-directories are not listed.
func Glob(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list directory %s", dir)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
