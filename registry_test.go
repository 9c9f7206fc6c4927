package upscale

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ids(descs []Descriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Identifier()
	}
	return out
}

func TestRegistryRejectsDuplicateIdentifier(t *testing.T) {
	r := NewRegistry()
	d := newFake("a")
	if !r.Register(d) {
		t.Fatal("first Register should succeed")
	}
	if r.Register(d) {
		t.Error("second Register of the same descriptor should be rejected")
	}
	if r.Register(newFake("a")) {
		t.Error("Register of another descriptor with the same identifier should be rejected")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if r.Register(nil) {
		t.Error("Register(nil) should be rejected")
	}
}

func TestRegistryNameConflict(t *testing.T) {
	low := newFake("low")
	low.name, low.priority = NameFSR2, 1
	high := newFake("high")
	high.name, high.priority = NameFSR2, 5

	tests := []struct {
		name  string
		order []*fakeDescriptor
	}{
		{"low first", []*fakeDescriptor{low, high}},
		{"high first", []*fakeDescriptor{high, low}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, d := range tt.order {
				r.Register(d)
			}
			if r.Len() != 1 {
				t.Fatalf("Len() = %d, want 1", r.Len())
			}
			if got := r.FindByName(NameFSR2); got != Descriptor(high) {
				t.Errorf("FindByName(FSR2) = %v, want high", got)
			}
			if r.FindByIdentifier("low") != nil {
				t.Error("the lower priority descriptor should not be findable")
			}
		})
	}
}

func TestRegistryNameNoneNeverConflicts(t *testing.T) {
	r := NewRegistry()
	r.Register(newFake("a"))
	r.Register(newFake("b"))
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()
	for _, d := range []struct {
		id       string
		priority int
	}{{"c", 10}, {"a", 0}, {"b", 10}, {"d", -5}} {
		f := newFake(d.id)
		f.priority = d.priority
		r.Register(f)
	}
	want := []string{"d", "a", "c", "b"}
	if diff := cmp.Diff(want, ids(r.List())); diff != "" {
		t.Errorf("List() order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryFindMisses(t *testing.T) {
	r := NewRegistry()
	if r.FindByIdentifier("nope") != nil {
		t.Error("FindByIdentifier on an empty registry should return nil")
	}
	if r.FindByName(NameDLSS4) != nil {
		t.Error("FindByName on an empty registry should return nil")
	}

	_, err := r.Lookup("nope")
	var nf *AlgorithmNotFoundError
	if !errors.As(err, &nf) || nf.Identifier != "nope" {
		t.Errorf("Lookup() error = %v, want *AlgorithmNotFoundError", err)
	}
	if err.Error() != "upscale: algorithm not found: nope" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRegistrySupport(t *testing.T) {
	r := NewRegistry()
	a := newFake("a")
	a.supported = false
	r.Register(a)
	if r.AnySupported() {
		t.Error("AnySupported() = true with only unsupported descriptors")
	}

	b := newFake("b")
	r.Register(b)
	if !r.AnySupported() {
		t.Error("AnySupported() = false with a supported descriptor")
	}
	if diff := cmp.Diff([]string{"b"}, ids(r.Supported())); diff != "" {
		t.Errorf("Supported() mismatch (-want +got):\n%s", diff)
	}

	// Support is evaluated live.
	b.supported = false
	if r.AnySupported() {
		t.Error("AnySupported() should follow the live support check")
	}
}

func TestRegistryCleanupAndUnregister(t *testing.T) {
	r := NewRegistry()
	a, b := newFake("a"), newFake("b")
	r.Register(a)
	r.Register(b)

	r.Cleanup()
	if a.cleanups != 1 || b.cleanups != 1 {
		t.Errorf("cleanups = %d, %d, want 1, 1", a.cleanups, b.cleanups)
	}

	if !r.Unregister("a") || r.Unregister("a") {
		t.Error("Unregister should succeed once")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(newFake(string(rune('a' + i))))
			_ = r.List()
			_ = r.FindByIdentifier("a")
		}(i)
	}
	wg.Wait()
	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
}
