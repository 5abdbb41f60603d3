package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/fatih/color"
	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/snap/pkg/object"
	"github.com/odvcencio/snap/pkg/repo"
)

// runSnap executes the root command inside dir and returns its stdout.
func runSnap(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	prevWD, wdErr := os.Getwd()
	if wdErr != nil {
		t.Fatalf("getwd: %v", wdErr)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(prevWD) })
	color.NoColor = true

	root := newRootCmd()
	root.SetArgs(args)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func mustRunSnap(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runSnap(t, dir, args...)
	if err != nil {
		t.Fatalf("snap %v: %v\n%s", args, err, out)
	}
	return out
}

func writeRepoFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	absPath := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): %v", relPath, err)
	}
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", relPath, err)
	}
}

func initCLIRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out := mustRunSnap(t, dir, "init")
	if !strings.Contains(out, "initialized empty snap repository") {
		t.Fatalf("init output = %q", out)
	}
	return dir
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("output does not contain %q:\n%s", want, out)
	}
}

func assertNotContains(t *testing.T, out, unwanted string) {
	t.Helper()
	if strings.Contains(out, unwanted) {
		t.Errorf("output unexpectedly contains %q:\n%s", unwanted, out)
	}
}

func assertMatches(t *testing.T, out, pattern string) {
	t.Helper()
	if !regexp.MustCompile(pattern).MatchString(out) {
		t.Errorf("output does not match %s:\n%s", pattern, out)
	}
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}

func headCommit(t *testing.T, dir string) *object.CommitObj {
	t.Helper()
	r, err := repo.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	c, err := r.Store.ReadCommit(head)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	return c
}

func TestVersion(t *testing.T) {
	if out := mustRunSnap(t, t.TempDir(), "version"); out != "snap "+version+"\n" {
		t.Errorf("version = %q", out)
	}
}

func TestInit_TwiceFails(t *testing.T) {
	dir := initCLIRepo(t)
	_, err := runSnap(t, dir, "init")
	assertErrorIs(t, err, repo.ErrAlreadyInitialized)
}

func TestAdd_OutsideRepository(t *testing.T) {
	_, err := runSnap(t, t.TempDir(), "add", "x.txt")
	assertErrorIs(t, err, repo.ErrNotInitialized)
}

func TestAdd_MissingPath(t *testing.T) {
	dir := initCLIRepo(t)
	_, err := runSnap(t, dir, "add", "missing.txt")
	assertErrorIs(t, err, repo.ErrPathNotFound)
}

func TestAddCommitStatusLog(t *testing.T) {
	dir := initCLIRepo(t)
	writeRepoFile(t, dir, "hello.txt", "hello")
	writeRepoFile(t, dir, "src/main.go", "package main\n")

	out := mustRunSnap(t, dir, "status")
	assertContains(t, out, "on master (no commits yet)")
	assertContains(t, out, "nothing staged")

	mustRunSnap(t, dir, "add", "hello.txt", "src")
	out = mustRunSnap(t, dir, "status")
	assertContains(t, out, "hello.txt")
	assertContains(t, out, "src/main.go")

	out = mustRunSnap(t, dir, "commit", "-m", "hello world\n\nbody")
	assertMatches(t, out, `^\[master [0-9a-f]{8}\] hello world\n$`)

	out = mustRunSnap(t, dir, "status")
	assertContains(t, out, "on master\n")
	assertContains(t, out, "nothing staged")

	writeRepoFile(t, dir, "hello.txt", "hello again")
	mustRunSnap(t, dir, "add", "hello.txt")
	mustRunSnap(t, dir, "commit", "-m", "second")

	out = mustRunSnap(t, dir, "log", "--oneline")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("log --oneline = %d lines, want 2\n%s", len(lines), out)
	}
	assertContains(t, lines[0], "(HEAD -> master) second")
	assertContains(t, lines[1], "hello world")

	out = mustRunSnap(t, dir, "log", "-n", "1")
	assertContains(t, out, "Author: "+repo.DefaultAuthor)
	assertContains(t, out, "    second")
	assertNotContains(t, out, "hello world")
}

func TestStatus_ShowsWhatCommitWillContain(t *testing.T) {
	dir := initCLIRepo(t)

	// "a" staged as a file, then replaced by a directory holding a/b.
	writeRepoFile(t, dir, "a", "file")
	mustRunSnap(t, dir, "add", "a")
	if err := os.Remove(filepath.Join(dir, "a")); err != nil {
		t.Fatal(err)
	}
	writeRepoFile(t, dir, "a/b", "nested")
	mustRunSnap(t, dir, "add", "a/b")

	out := mustRunSnap(t, dir, "status")
	assertMatches(t, out, `\+ [0-9a-f]{8} a/b\n`)
	assertNotContains(t, out, " a\n")

	mustRunSnap(t, dir, "commit", "-m", "replace")
	files := mustRunSnap(t, dir, "ls-tree", "-r", "HEAD")
	assertMatches(t, files, `^blob [0-9a-f]{40}\ta/b\n$`)
}

func TestLog_NoCommits(t *testing.T) {
	dir := initCLIRepo(t)
	if out := mustRunSnap(t, dir, "log"); out != "no commits yet\n" {
		t.Errorf("log = %q", out)
	}
}

func TestCommit_NothingToCommit(t *testing.T) {
	dir := initCLIRepo(t)
	_, err := runSnap(t, dir, "commit", "-m", "empty")
	assertErrorIs(t, err, repo.ErrNothingToCommit)

	if _, statErr := os.Stat(filepath.Join(dir, repo.DirName, "refs", "heads", "master")); !os.IsNotExist(statErr) {
		t.Errorf("branch ref must not exist, stat err=%v", statErr)
	}
}

func TestCommit_UsesConfiguredEditor(t *testing.T) {
	dir := initCLIRepo(t)
	src := filepath.Join(t.TempDir(), "msg.txt")
	if err := os.WriteFile(src, []byte("from the editor\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := repo.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg := repo.DefaultConfig()
	cfg.Core.Editor = fmt.Sprintf("cp %q", src)
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}

	writeRepoFile(t, dir, "a.txt", "a")
	mustRunSnap(t, dir, "add", "a.txt")
	assertContains(t, mustRunSnap(t, dir, "commit"), "from the editor")

	if c := headCommit(t, dir); c.Message != "from the editor\n" {
		t.Errorf("Message = %q", c.Message)
	}
}

func TestCommit_EditorFailureKeepsStaging(t *testing.T) {
	dir := initCLIRepo(t)
	t.Setenv("VISUAL", "false")
	writeRepoFile(t, dir, "a.txt", "a")
	mustRunSnap(t, dir, "add", "a.txt")

	_, err := runSnap(t, dir, "commit")
	assertErrorIs(t, err, repo.ErrEditorFailed)

	out := mustRunSnap(t, dir, "status")
	assertContains(t, out, "a.txt")
	assertContains(t, out, "no commits yet")

	// The retry is not blocked by the aborted attempt.
	mustRunSnap(t, dir, "commit", "-m", "retry")
}

func TestCatFileAndLsTree(t *testing.T) {
	dir := initCLIRepo(t)
	writeRepoFile(t, dir, "a.txt", "alpha")
	writeRepoFile(t, dir, "dir/b.txt", "beta")
	mustRunSnap(t, dir, "add", "a.txt", "dir/b.txt")
	mustRunSnap(t, dir, "commit", "-m", "tree")

	if out := mustRunSnap(t, dir, "cat-file", "-t", "HEAD"); out != "commit\n" {
		t.Errorf("cat-file -t HEAD = %q", out)
	}
	assertContains(t, mustRunSnap(t, dir, "cat-file", "master"), "author user\n")

	blobHash := object.HashObject(object.TypeBlob, []byte("alpha"))
	if out := mustRunSnap(t, dir, "cat-file", string(blobHash)); out != "alpha" {
		t.Errorf("cat-file blob = %q", out)
	}
	if out := mustRunSnap(t, dir, "cat-file", "-s", string(blobHash)); out != "5\n" {
		t.Errorf("cat-file -s = %q", out)
	}

	out := mustRunSnap(t, dir, "ls-tree", "HEAD")
	assertContains(t, out, "blob "+string(blobHash)+"\ta.txt\n")
	assertMatches(t, out, `tree [0-9a-f]{40}\tdir\n`)

	out = mustRunSnap(t, dir, "ls-tree", "-r", "HEAD")
	betaHash := object.HashObject(object.TypeBlob, []byte("beta"))
	assertContains(t, out, "blob "+string(betaHash)+"\tdir/b.txt\n")
	assertNotContains(t, out, "tree ")

	if _, err := runSnap(t, dir, "ls-tree", string(blobHash)); err == nil {
		t.Error("ls-tree on a blob succeeded")
	}
	_, err := runSnap(t, dir, "cat-file", strings.Repeat("0", 40))
	assertErrorIs(t, err, object.ErrObjectNotFound)
}

func TestReflog(t *testing.T) {
	dir := initCLIRepo(t)
	writeRepoFile(t, dir, "a.txt", "a")
	mustRunSnap(t, dir, "add", "a.txt")
	mustRunSnap(t, dir, "commit", "-m", "one")

	assertMatches(t, mustRunSnap(t, dir, "reflog"), `^[0-9a-f]{8} \S+ refs/heads/master commit\n$`)
}

func TestCommit_SignedWithSSHKey(t *testing.T) {
	dir := initCLIRepo(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}

	writeRepoFile(t, dir, "a.txt", "a")
	mustRunSnap(t, dir, "add", "a.txt")
	mustRunSnap(t, dir, "commit", "-m", "signed", "--signing-key", keyPath)

	c := headCommit(t, dir)
	if !strings.HasPrefix(c.Signature, commitSignaturePrefix+":") {
		t.Fatalf("Signature = %q", c.Signature)
	}
	fp, err := verifyCommitSignature(c)
	if err != nil {
		t.Fatalf("verifyCommitSignature: %v", err)
	}
	if !strings.HasPrefix(fp, "SHA256:") {
		t.Errorf("fingerprint = %q", fp)
	}

	assertContains(t, mustRunSnap(t, dir, "log", "--show-signature"), "Signature: good SHA256:")

	c.Message = "tampered"
	if _, err := verifyCommitSignature(c); err == nil {
		t.Error("tampered commit verified")
	}
}

func TestLogLevelFlagRejectsUnknownLevel(t *testing.T) {
	dir := initCLIRepo(t)
	if _, err := runSnap(t, dir, "--log-level", "loud", "status"); err == nil {
		t.Error("unknown log level accepted")
	}
}
