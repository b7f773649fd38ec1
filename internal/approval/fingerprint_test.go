package approval

import "testing"

func TestNormalizeArgvStripsShellWrappers(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"sh -lc \"rm -rf /tmp/x\"", "\"rm -rf /tmp/x\""},
		{"zsh -lc echo hi", "echo hi"},
		{"bash -c ls -la", "ls -la"},
		{"cmd /c dir", "dir"},
		{"pwsh -c Get-ChildItem", "Get-ChildItem"},
		{"ls -la", "ls -la"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeArgv(c.in); got != c.want {
			t.Errorf("NormalizeArgv(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFingerprintEquivalenceAcrossWrappers(t *testing.T) {
	a := NewFingerprint("exec", "sh -lc \"echo hi\"", "/tmp")
	b := NewFingerprint("exec", "zsh -lc \"echo hi\"", "/tmp")
	if a.key() != b.key() {
		t.Fatalf("expected equivalent fingerprints across shell wrappers, got %q vs %q", a.key(), b.key())
	}
}

func TestCacheGrantAndLookup(t *testing.T) {
	c := NewCache(2)
	fp1 := NewFingerprint("exec", "echo one", "/tmp")
	fp2 := NewFingerprint("exec", "echo two", "/tmp")

	if c.Granted(fp1) {
		t.Fatal("expected no grant before Grant is called")
	}

	c.Grant(fp1)
	if !c.Granted(fp1) {
		t.Fatal("expected grant to be recorded")
	}
	if c.Granted(fp2) {
		t.Fatal("expected unrelated fingerprint ungranted")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	fp1 := NewFingerprint("exec", "echo one", "/tmp")
	fp2 := NewFingerprint("exec", "echo two", "/tmp")
	fp3 := NewFingerprint("exec", "echo three", "/tmp")

	c.Grant(fp1)
	c.Grant(fp2)
	c.Grant(fp3) // evicts fp1 (least recently used)

	if c.Granted(fp1) {
		t.Fatal("expected fp1 evicted")
	}
	if !c.Granted(fp2) || !c.Granted(fp3) {
		t.Fatal("expected fp2 and fp3 still granted")
	}
	if c.Len() != 2 {
		t.Fatalf("expected cache len 2, got %d", c.Len())
	}
}

func TestCwdDistinguishesFingerprints(t *testing.T) {
	a := NewFingerprint("exec", "echo hi", "/tmp/a")
	b := NewFingerprint("exec", "echo hi", "/tmp/b")
	c := NewCache(4)
	c.Grant(a)
	if c.Granted(b) {
		t.Fatal("expected different cwd to produce a distinct fingerprint")
	}
}
