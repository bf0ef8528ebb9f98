package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeRepo struct {
	ensureErr  error
	ensured    int
	closeCalls int
	runs       []Run
}

func (f *fakeRepo) Close() { f.closeCalls++ }

func (f *fakeRepo) EnsureTables(ctx context.Context) error {
	f.ensured++
	return f.ensureErr
}

func (f *fakeRepo) InsertRun(ctx context.Context, run Run) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRepo) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	return f.runs, nil
}

func TestNew_EnsuresTables(t *testing.T) {
	repo := &fakeRepo{}
	Register("fake-ok", func(ctx context.Context, cfg Config) (RunRepository, error) {
		if cfg.DSN != "mem" {
			t.Fatalf("DSN=%q, want mem", cfg.DSN)
		}
		return repo, nil
	})

	got, err := New(context.Background(), Config{Kind: "fake-ok", DSN: "mem"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got != repo || repo.ensured != 1 {
		t.Fatalf("repo not returned or EnsureTables not called (ensured=%d)", repo.ensured)
	}
}

func TestNew_ClosesOnEnsureFailure(t *testing.T) {
	repo := &fakeRepo{ensureErr: errors.New("read-only")}
	Register("fake-ro", func(ctx context.Context, cfg Config) (RunRepository, error) { return repo, nil })

	if _, err := New(context.Background(), Config{Kind: "fake-ro"}); err == nil {
		t.Fatalf("expected EnsureTables error")
	}
	if repo.closeCalls != 1 {
		t.Fatalf("closeCalls=%d, want 1", repo.closeCalls)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err := New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unsupported storage kind=nope") {
		t.Fatalf("err=%v", err)
	}
}

func TestRegister_Panics(t *testing.T) {
	Register("fake-dup", func(ctx context.Context, cfg Config) (RunRepository, error) { return nil, nil })

	for name, fn := range map[string]func(){
		"empty_kind":  func() { Register("", func(ctx context.Context, cfg Config) (RunRepository, error) { return nil, nil }) },
		"nil_factory": func() { Register("fake-nil", nil) },
		"duplicate": func() {
			Register("fake-dup", func(ctx context.Context, cfg Config) (RunRepository, error) { return nil, nil })
		},
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			fn()
		})
	}
}

func TestRun_FinishAndValues(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	r := NewRun(started, "/t/a.docx", "/o/a.pdf")
	r.Finish("g-1", 4, 1500*time.Millisecond, nil)

	v := r.Values()
	if len(v) != len(Columns) {
		t.Fatalf("len(Values)=%d, len(Columns)=%d", len(v), len(Columns))
	}
	if v[1].(time.Time).Location() != time.UTC {
		t.Fatalf("started_at not UTC")
	}
	if v[6].(int64) != 1500 || v[7] != StatusOK || v[8] != "" {
		t.Fatalf("values=%v", v)
	}

	r.Finish("", 0, time.Second, errors.New("boom"))
	if r.Status != StatusError || r.Error != "boom" {
		t.Fatalf("status=%q error=%q", r.Status, r.Error)
	}

	back, err := ScanRun(r.ID.String(), r.StartedAt, r.Template, r.Report, r.Guid, 0, 1000, r.Status, r.Error)
	if err != nil {
		t.Fatalf("ScanRun: %v", err)
	}
	if back != r {
		t.Fatalf("ScanRun=%+v, want %+v", back, r)
	}
	if _, err := ScanRun("not-a-uuid", started, "", "", "", 0, 0, "", ""); err == nil {
		t.Fatalf("expected uuid parse error")
	}
}
