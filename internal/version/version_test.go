package version

import "testing"

func TestString(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = oldVersion, oldCommit, oldBuild
	})

	Version, Commit, BuildTime = "1.2.0", "abc1234", "2026-01-02T03:04:05Z"

	want := "1.2.0 (abc1234) built 2026-01-02T03:04:05Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	info := Get()
	if info.Version != "1.2.0" || info.Commit != "abc1234" || info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("Get() = %+v", info)
	}
}
