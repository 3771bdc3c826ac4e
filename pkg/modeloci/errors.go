package modeloci

import "errors"

var (
	// ErrNotADirectory is returned by Package when the source path does not
	// exist or is not a directory.
	ErrNotADirectory = errors.New("not a directory")

	// ErrFileNotFound is returned when a required input file is missing:
	// the AddLayer target, or a required archive-internal file such as
	// config.json or manifest.json.
	ErrFileNotFound = errors.New("file not found")

	// ErrMalformedArchive is returned when an archive cannot be opened or
	// parsed as a tar container, or a JSON file inside it fails to parse.
	ErrMalformedArchive = errors.New("malformed archive")
)
