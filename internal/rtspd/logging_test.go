package rtspd

import (
	"os"
	"testing"
)

func TestGetProjectRootStripsThreeLevels(t *testing.T) {
	sep := string(os.PathSeparator)
	file := sep + "home" + sep + "me" + sep + "rtspd" + sep + "internal" + sep + "rtspd" + sep + "logging.go"

	got := getProjectRoot(file)
	want := sep + "home" + sep + "me" + sep + "rtspd"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGetProjectRootTooShallowReturnsEmpty(t *testing.T) {
	if got := getProjectRoot("logging.go"); got != "" {
		t.Errorf("expected empty project root for a path with no separators, got %q", got)
	}
}
