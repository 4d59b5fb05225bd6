//go:build !(darwin || freebsd || linux)

package nativeload

// PuregoSource is unavailable where purego has no dlopen.
type PuregoSource struct{}

func (PuregoSource) Name() string {
	return "purego"
}

func (PuregoSource) Constants() (map[Constant]Flags, error) {
	return nil, ErrSourceUnavailable
}
