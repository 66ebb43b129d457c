//go:build integration

package cmd

import (
	"testing"
	"time"

	"github.com/prettymuchbryce/globwatch/internal/testutil"
)

func TestWatch_ShellActionOnCreate(t *testing.T) {
	testutil.Run(t, testutil.TestCase{
		Name: "shell action moves matching file on create",
		Config: `
watches:
  - pattern: {{join .TmpDir "source" "*.txt"}}
    action:
      shell: "mv ${path} {{join .TmpDir "dest"}}/"

daemon:
  idle_interval: 20ms

logging:
  level: debug
`,
		Before: []testutil.FileEntry{
			testutil.Dir("source"),
			testutil.Dir("dest"),
		},
		Trigger: []testutil.FileEntry{
			testutil.File("source/test.txt").WithContent("hello"),
		},
		Expect: []testutil.FileEntry{
			testutil.File("dest/test.txt"),
		},
		Missing: []string{
			"source/test.txt",
		},
	})
}

func TestWatch_PatternOnlyMatchesItsOwnGlob(t *testing.T) {
	// Two watches with disjoint extension globs on the same directory:
	// each pattern's action should only fire for its own matching files.
	testutil.Run(t, testutil.TestCase{
		Name: "pattern extension narrows which files trigger which action",
		Config: `
watches:
  - pattern: {{join .TmpDir "source" "*.txt"}}
    action:
      shell: "mv ${path} {{join .TmpDir "dest-txt"}}/"
  - pattern: {{join .TmpDir "source" "*.jpg"}}
    action:
      shell: "mv ${path} {{join .TmpDir "dest-jpg"}}/"

daemon:
  idle_interval: 20ms

logging:
  level: debug
`,
		Before: []testutil.FileEntry{
			testutil.Dir("source"),
			testutil.Dir("dest-txt"),
			testutil.Dir("dest-jpg"),
		},
		Trigger: []testutil.FileEntry{
			testutil.File("source/test.txt").WithContent("hello"),
			testutil.File("source/image.jpg").WithContent("image"),
		},
		Expect: []testutil.FileEntry{
			testutil.File("dest-txt/test.txt"),
			testutil.File("dest-jpg/image.jpg"),
		},
		Missing: []string{
			"source/test.txt",
			"source/image.jpg",
			"dest-txt/image.jpg",
			"dest-jpg/test.txt",
		},
	})
}

func TestWatch_RecursiveGlobMatchesNestedDirectoryCreatedAfterStart(t *testing.T) {
	// "**" should pick up a subdirectory created after the daemon starts
	// watching, not just subdirectories that already existed.
	testutil.Run(t, testutil.TestCase{
		Name: "recursive pattern follows a newly created subdirectory",
		Config: `
watches:
  - pattern: {{join .TmpDir "source" "**" "*.txt"}}
    action:
      shell: "mv ${path} {{join .TmpDir "dest"}}/"

daemon:
  idle_interval: 20ms

logging:
  level: debug
`,
		Before: []testutil.FileEntry{
			testutil.Dir("source"),
			testutil.Dir("dest"),
		},
		Trigger: []testutil.FileEntry{
			testutil.Dir("source/nested"),
			testutil.File("source/nested/test.txt").WithContent("hello"),
		},
		Expect: []testutil.FileEntry{
			testutil.File("dest/test.txt"),
		},
		Missing: []string{
			"source/nested/test.txt",
		},
		Timeout: 3 * time.Second, // recursive registration needs an extra round trip
	})
}
