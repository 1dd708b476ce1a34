package reply_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxenio/voxen/internal/reply"
)

var fixedClock = func() time.Time {
	return time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)
}

func TestCommands_TimeEnglish(t *testing.T) {
	c := reply.NewCommands(reply.WithClock(fixedClock))
	got, ok := c.Respond("What time is it?")
	if !ok {
		t.Fatal("Respond() ok = false, want true")
	}
	if !strings.Contains(got, "2:30 PM") {
		t.Fatalf("Respond() = %q, want it to contain 2:30 PM", got)
	}
}

func TestCommands_TimeChinese(t *testing.T) {
	c := reply.NewCommands(reply.WithClock(fixedClock))
	got, ok := c.Respond("现在几点了")
	if !ok {
		t.Fatal("Respond() ok = false, want true")
	}
	if !strings.Contains(got, "现在时间是") || !strings.Contains(got, "14点30分") {
		t.Fatalf("Respond() = %q, want Chinese time answer", got)
	}
}

func TestCommands_DateEnglish(t *testing.T) {
	c := reply.NewCommands(reply.WithClock(fixedClock))
	got, ok := c.Respond("what's the date")
	if !ok {
		t.Fatal("Respond() ok = false, want true")
	}
	if !strings.Contains(got, "March 5, 2024") {
		t.Fatalf("Respond() = %q, want it to contain March 5, 2024", got)
	}
}

func TestCommands_FuzzyTokenMatch(t *testing.T) {
	c := reply.NewCommands(reply.WithClock(fixedClock))
	// "thyme" is phonetically identical to "time" and common in
	// misrecognised transcripts.
	got, ok := c.Respond("what thyme is it")
	if !ok {
		t.Fatal("Respond() ok = false, want fuzzy match on thyme")
	}
	if !strings.Contains(got, "2:30 PM") {
		t.Fatalf("Respond() = %q, want the time answer", got)
	}
}

func TestCommands_NoMatch(t *testing.T) {
	c := reply.NewCommands(reply.WithClock(fixedClock))
	if got, ok := c.Respond("tell me a joke about penguins"); ok {
		t.Fatalf("Respond() = %q, ok = true, want no match", got)
	}
}

func TestCommands_WorkingDirChinese(t *testing.T) {
	dir := t.TempDir()
	c := reply.NewCommands(reply.WithRoot(dir))
	got, ok := c.Respond("当前目录是什么")
	if !ok {
		t.Fatal("Respond() ok = false, want true")
	}
	if !strings.Contains(got, dir) {
		t.Fatalf("Respond() = %q, want it to contain %q", got, dir)
	}
}

func TestCommands_FileCount(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	c := reply.NewCommands(reply.WithRoot(dir))
	got, ok := c.Respond("how many files are in here")
	if !ok {
		t.Fatal("Respond() ok = false, want true")
	}
	if !strings.Contains(got, "3 files") {
		t.Fatalf("Respond() = %q, want a count of 3 files", got)
	}
}

func TestCommands_LastModified(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := reply.NewCommands(reply.WithRoot(dir))
	got, ok := c.Respond("which file was last modified")
	if !ok {
		t.Fatal("Respond() ok = false, want true")
	}
	if !strings.Contains(got, "new.txt") {
		t.Fatalf("Respond() = %q, want it to name new.txt", got)
	}
}

func TestCommands_DiskUsage(t *testing.T) {
	c := reply.NewCommands(reply.WithRoot(t.TempDir()))
	got, ok := c.Respond("how much disk space is left")
	if !ok {
		t.Fatal("Respond() ok = false, want true")
	}
	if !strings.Contains(got, "gigabytes") {
		t.Fatalf("Respond() = %q, want a gigabytes figure", got)
	}
}

func TestDefaultMatcher(t *testing.T) {
	if got := reply.DefaultMatcher("time", "time"); got != 1.0 {
		t.Fatalf("DefaultMatcher(time, time) = %v, want 1.0", got)
	}
	if got := reply.DefaultMatcher("thyme", "time"); got < 0.95 {
		t.Fatalf("DefaultMatcher(thyme, time) = %v, want >= 0.95 via phonetics", got)
	}
	if got := reply.DefaultMatcher("penguin", "time"); got >= 0.84 {
		t.Fatalf("DefaultMatcher(penguin, time) = %v, want below threshold", got)
	}
}

func TestCommands_CustomMatcher(t *testing.T) {
	always := func(token, keyword string) float64 {
		if keyword == "date" {
			return 1.0
		}
		return 0
	}
	c := reply.NewCommands(reply.WithMatcher(always), reply.WithClock(fixedClock))
	got, ok := c.Respond("zzz")
	if !ok {
		t.Fatal("Respond() ok = false, want custom matcher to force a hit")
	}
	if !strings.Contains(got, "March 5, 2024") {
		t.Fatalf("Respond() = %q, want the date answer", got)
	}
}
