// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package pathguard

import (
	"path/filepath"
	"testing"
)

func TestSanitizeComponent(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"model.gguf", "model.gguf", true},
		{"", "", false},
		{".", "", false},
		{"..", "", false},
		{"a/b", "", false},
		{`a\b`, "", false},
		{"  trimmed.txt..", "trimmed.txt", true},
		{"bad\x00name", "", false},
	}
	for _, c := range cases {
		got, ok := SanitizeComponent(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("SanitizeComponent(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestResolveHappyPath(t *testing.T) {
	base := t.TempDir()
	p, err := Resolve(base, "TheBloke/Mistral-7B-GGUF", "subdir/model.Q4_0.gguf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(base, "TheBloke", "Mistral-7B-GGUF", "subdir", "model.Q4_0.gguf")
	gotAbs, _ := filepath.Abs(want)
	wantBase, _ := filepath.EvalSymlinks(filepath.Dir(gotAbs))
	if filepath.Dir(p) != wantBase {
		t.Errorf("Resolve returned %q, expected under %q", p, wantBase)
	}
	if filepath.Base(p) != "model.Q4_0.gguf" {
		t.Errorf("Resolve returned base name %q", filepath.Base(p))
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	_, err := Resolve(base, "author/name", "../../etc/passwd")
	if err == nil {
		t.Fatal("expected traversal error")
	}
	if !IsTraversal(err) {
		// SanitizeComponent already rejects ".." segments before traversal
		// is even attempted, so InvalidName is an acceptable rejection too.
		gerr, ok := err.(*Error)
		if !ok || gerr.Reason != ReasonInvalidName {
			t.Errorf("expected traversal or invalid-name rejection, got %v", err)
		}
	}
}

func TestResolveRejectsBadModelID(t *testing.T) {
	base := t.TempDir()
	for _, id := range []string{"noauthor", "a/b/c", "/name", "author/", "bad name/ok"} {
		if _, err := Resolve(base, id, "f.bin"); err == nil {
			t.Errorf("expected error for model id %q", id)
		}
	}
}

func TestResolveRejectsEmptyFilename(t *testing.T) {
	base := t.TempDir()
	if _, err := Resolve(base, "a/b", ""); err == nil {
		t.Fatal("expected error for empty filename")
	}
	if _, err := Resolve(base, "a/b", "///"); err == nil {
		t.Fatal("expected error for filename with no usable segments")
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	base := t.TempDir()
	p1, err := Resolve(base, "a/b", "x/y.bin")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := Resolve(base, "a/b", "x/y.bin")
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Errorf("Resolve not deterministic: %q != %q", p1, p2)
	}
}
