package object

import (
	"bytes"
	"strings"
	"testing"
)

func TestMarshalTreeSortsAndFormats(t *testing.T) {
	blobHash := HashBytes([]byte("b"))
	treeHash := HashBytes([]byte("t"))
	tr := &TreeObj{Entries: []TreeEntry{
		{Name: "zeta.txt", Hash: blobHash},
		{Name: "dir", IsDir: true, Hash: treeHash},
		{Name: "a.txt", Hash: blobHash},
	}}

	got := string(MarshalTree(tr))
	want := "blob " + string(blobHash) + " a.txt\n" +
		"tree " + string(treeHash) + " dir\n" +
		"blob " + string(blobHash) + " zeta.txt\n"
	if got != want {
		t.Errorf("MarshalTree:\ngot:  %q\nwant: %q", got, want)
	}

	// Input order must not leak into the output.
	reversed := &TreeObj{Entries: []TreeEntry{tr.Entries[2], tr.Entries[1], tr.Entries[0]}}
	if !bytes.Equal(MarshalTree(reversed), MarshalTree(tr)) {
		t.Error("MarshalTree depends on entry order")
	}
}

func TestUnmarshalTreeNameWithSpaces(t *testing.T) {
	h := HashBytes([]byte("x"))
	data := []byte("blob " + string(h) + " my file.txt\n")
	tr, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(tr.Entries) != 1 || tr.Entries[0].Name != "my file.txt" {
		t.Errorf("entries = %+v", tr.Entries)
	}
}

func TestUnmarshalTreeEmpty(t *testing.T) {
	tr, err := UnmarshalTree(nil)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(tr.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(tr.Entries))
	}
}

func TestUnmarshalTreeMalformed(t *testing.T) {
	h := string(HashBytes([]byte("x")))
	cases := []string{
		"blob " + h + "\n",
		"link " + h + " name\n",
		"blob nothex name\n",
		"garbage\n",
	}
	for _, c := range cases {
		if _, err := UnmarshalTree([]byte(c)); err == nil {
			t.Errorf("UnmarshalTree(%q) should fail", c)
		}
	}
}

func TestMarshalCommitLayout(t *testing.T) {
	c := &CommitObj{
		TreeHash:  Hash(strings.Repeat("a", 40)),
		Author:    "user",
		Timestamp: 42,
		Message:   "# Title\n#\n# Body",
	}
	want := "tree " + strings.Repeat("a", 40) + "\n" +
		"author user\n" +
		"timestamp 42\n" +
		"\n" +
		"# Title\n#\n# Body"
	if got := string(MarshalCommit(c)); got != want {
		t.Errorf("MarshalCommit:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestCommitRoundTripWithSignature(t *testing.T) {
	orig := &CommitObj{
		TreeHash:  Hash(strings.Repeat("b", 40)),
		Parents:   []Hash{Hash(strings.Repeat("c", 40))},
		Author:    "Jane Doe",
		Timestamp: 1700000000,
		Signature: "sshsig-v1:ssh-ed25519:AAAA:BBBB",
		Message:   "message\n\nwith a blank line inside\n",
	}
	got, err := UnmarshalCommit(MarshalCommit(orig))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.Author != orig.Author || got.Signature != orig.Signature || got.Message != orig.Message {
		t.Errorf("round trip: got %+v, want %+v", got, orig)
	}
	if len(got.Parents) != 1 || got.Parents[0] != orig.Parents[0] {
		t.Errorf("Parents: got %v", got.Parents)
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &CommitObj{
		TreeHash:  Hash(strings.Repeat("d", 40)),
		Author:    "user",
		Timestamp: 1,
		Signature: "sig",
		Message:   "m",
	}
	payload := CommitSigningPayload(c)
	if bytes.Contains(payload, []byte("signature")) {
		t.Errorf("payload contains signature: %q", payload)
	}
	if c.Signature != "sig" {
		t.Error("CommitSigningPayload mutated its input")
	}
	if CommitSigningPayload(nil) != nil {
		t.Error("nil commit should give nil payload")
	}
}

func TestUnmarshalCommitErrors(t *testing.T) {
	cases := []string{
		"tree abc",
		"tree abc\nbogus value\n\nmsg",
		"tree abc\ntimestamp x\n\nmsg",
		"tree abc\nnospace\n\nmsg",
	}
	for _, c := range cases {
		if _, err := UnmarshalCommit([]byte(c)); err == nil {
			t.Errorf("UnmarshalCommit(%q) should fail", c)
		}
	}
}
