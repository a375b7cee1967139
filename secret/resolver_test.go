package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubProvider struct {
	values map[string]string
	err    error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[ref], nil
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:file:/run/secrets/token", "file", "/run/secrets/token", true},
		{"secretref:stub:a:b", "stub", "a:b", true},
		{"secretref:stub:", "", "", false},
		{"secretref::x", "", "", false},
		{"not-a-ref", "", "", false},
	}
	for _, tt := range tests {
		p, r, ok := ParseSecretRef(tt.in)
		if p != tt.provider || r != tt.ref || ok != tt.ok {
			t.Errorf("ParseSecretRef(%q) = %q, %q, %v", tt.in, p, r, ok)
		}
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	t.Setenv("TOKEN_REF", "secretref:stub:alpha")
	r := NewResolver(stubProvider{values: map[string]string{"alpha": "one", "beta": "two"}})

	tests := map[string]string{
		"secretref:stub:alpha":       "one",
		"Bearer secretref:stub:beta": "Bearer two",
		"${TOKEN_REF}":               "one",
		"a=secretref:stub:alpha b=x": "a=one b=x",
		"no references":              "no references",
	}
	for in, want := range tests {
		got, err := r.Resolve(ctx, in)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := NewResolver().Resolve(ctx, "secretref:vault:x"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("unknown provider error = %v", err)
	}
	if _, err := NewResolver(stubProvider{}).Resolve(ctx, "secretref:stub:missing"); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("empty secret error = %v", err)
	}
	if _, err := NewResolver(stubProvider{err: boom}).Resolve(ctx, "secretref:stub:x"); !errors.Is(err, boom) {
		t.Errorf("provider error = %v", err)
	}
}

func TestResolver_NilExpandsEnvOnly(t *testing.T) {
	t.Setenv("X", "y")
	var r *Resolver
	got, err := r.Resolve(context.Background(), "${X} secretref:stub:a")
	if err != nil || got != "y secretref:stub:a" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}
}

func TestResolver_ResolveAll(t *testing.T) {
	r := NewResolver(stubProvider{values: map[string]string{"alpha": "one"}})
	token, empty, bad := "secretref:stub:alpha", "", "secretref:stub:nope"

	if err := r.ResolveAll(context.Background(), map[string]*string{"token": &token, "empty": &empty}); err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	if token != "one" || empty != "" {
		t.Errorf("token = %q, empty = %q", token, empty)
	}

	err := r.ResolveAll(context.Background(), map[string]*string{"api.token": &bad})
	if !errors.Is(err, ErrEmptySecret) {
		t.Errorf("ResolveAll() error = %v, want ErrEmptySecret", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "token"), []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	p := FileProvider{Dir: dir}
	for _, ref := range []string{"token", filepath.Join(dir, "token")} {
		got, err := p.Resolve(ctx, ref)
		if err != nil || got != "s3cret" {
			t.Errorf("Resolve(%q) = %q, %v", ref, got, err)
		}
	}
	if _, err := p.Resolve(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Resolve(missing) error = %v, want ErrNotExist", err)
	}
}
