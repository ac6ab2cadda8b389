package metadata

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureTime returns the EXIF DateTimeOriginal of a photo, falling back to
// DateTime. The wall clock is returned in UTC so it orders consistently with
// timestamps parsed from file names.
func CaptureTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}
