//go:build !linux && !darwin

package extattr

func set(path, attr string, value []byte) error { return ErrUnsupported }

func get(path, attr string) ([]byte, error) { return nil, ErrUnsupported }

func trySet(dir, attr string) error { return ErrUnsupported }
