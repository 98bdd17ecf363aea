package pipeerrors

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/markers"
)

// Marker errors classifying every failure the pipeline can produce.
// Stages mark their errors with one of these; callers branch with the
// Is* helpers instead of string matching.
var (
	MissingFile       = errors.New("expected audio file is missing")
	UnsupportedFormat = errors.New("audio could not be decoded or encoded")
	NotLoaded         = errors.New("required track is not loaded")
	Collaborator      = errors.New("external processing stage failed")
	MountUnavailable  = errors.New("shared mount is unavailable")
)

func MarkMissingFile(err error) error       { return errors.Mark(err, MissingFile) }
func MarkUnsupportedFormat(err error) error { return errors.Mark(err, UnsupportedFormat) }
func MarkNotLoaded(err error) error         { return errors.Mark(err, NotLoaded) }
func MarkCollaborator(err error) error      { return errors.Mark(err, Collaborator) }
func MarkMountUnavailable(err error) error  { return errors.Mark(err, MountUnavailable) }

func IsMissingFile(err error) bool       { return markers.Is(err, MissingFile) }
func IsUnsupportedFormat(err error) bool { return markers.Is(err, UnsupportedFormat) }
func IsNotLoaded(err error) bool         { return markers.Is(err, NotLoaded) }
func IsCollaborator(err error) bool      { return markers.Is(err, Collaborator) }
func IsMountUnavailable(err error) bool  { return markers.Is(err, MountUnavailable) }
