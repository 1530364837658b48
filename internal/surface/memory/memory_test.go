package memory

import (
	"errors"
	"testing"

	"marquee/internal/surface"
)

func TestDrawTextClipsButReportsFullWidth(t *testing.T) {
	t.Parallel()
	m := New(8, 2, 20)

	w, err := m.DrawText(5, 0, surface.White, "Hello")
	if err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	if w != 5 {
		t.Fatalf("width = %d, want 5", w)
	}
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := m.Row(0); got != "     Hel" {
		t.Fatalf("Row(0) = %q", got)
	}
}

func TestDrawTextWideGlyphs(t *testing.T) {
	t.Parallel()
	m := New(10, 1, 20)
	w, err := m.DrawText(0, 0, surface.White, "日本")
	if err != nil {
		t.Fatal(err)
	}
	if w != 4 {
		t.Fatalf("width = %d, want 4", w)
	}
}

func TestClearFlushCycle(t *testing.T) {
	t.Parallel()
	m := New(4, 1, 20)
	_, _ = m.DrawText(0, 0, surface.White, "ab")
	_ = m.Flush()
	_ = m.Clear()
	_ = m.Flush()

	if got := m.Row(0); got != "    " {
		t.Fatalf("Row(0) after clear = %q", got)
	}
	st := m.Stats()
	if st.Clears != 1 || st.Flushes != 2 || st.Draws != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if len(m.Frame()) != 0 {
		t.Fatalf("Frame() after empty flush = %v", m.Frame())
	}
}

func TestFailTextAndClosed(t *testing.T) {
	t.Parallel()
	m := New(4, 1, 20, WithFailText("bad"))
	if _, err := m.DrawText(0, 0, surface.White, "a bad one"); err == nil {
		t.Fatal("expected injected failure")
	}
	_ = m.Close()
	if !m.Closed() {
		t.Fatal("Closed() = false")
	}
	if _, err := m.DrawText(0, 0, surface.White, "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}
