//go:build linux || darwin

package extattr

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func set(path, attr string, value []byte) error {
	if err := unix.Setxattr(path, attr, value, 0); err != nil {
		return translate(path, attr, err)
	}
	return nil
}

func get(path, attr string) ([]byte, error) {
	size, err := unix.Getxattr(path, attr, nil)
	if err != nil {
		return nil, translate(path, attr, err)
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, attr, buf)
	if err != nil {
		return nil, translate(path, attr, err)
	}
	return buf[:n], nil
}

func trySet(dir, attr string) error {
	f, err := os.CreateTemp(dir, ".vidmeta_xattr_check")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	defer os.Remove(name)
	return set(name, attr, []byte("check"))
}

func translate(path, attr string, err error) error {
	switch {
	case errors.Is(err, unix.ENOTSUP), errors.Is(err, unix.EOPNOTSUPP):
		return fmt.Errorf("%s on %s: %w", attr, path, ErrUnsupported)
	case isNoAttr(err):
		return fmt.Errorf("%s on %s: %w", attr, path, ErrNotFound)
	default:
		return &os.PathError{Op: "xattr " + attr, Path: path, Err: err}
	}
}
