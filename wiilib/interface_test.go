package wiilib

import (
	"errors"
	"testing"
)

var concreteKinds = []Kind{
	KindNunchuck,
	KindClassicController,
	KindMotionPlus,
	KindMotionPlusNunchuck,
	KindMotionPlusClassic,
}

func TestIdentityPatternsDistinct(t *testing.T) {
	for i, a := range concreteKinds {
		ida, ok := Identity(a)
		if !ok {
			t.Fatalf("Identity(%s) has no pattern", a)
		}
		for _, b := range concreteKinds[i+1:] {
			idb, _ := Identity(b)
			if ida == idb {
				t.Errorf("%s and %s share identity pattern %#v", a, b, ida)
			}
		}
	}
}

func TestIdentityNoSentinelPatterns(t *testing.T) {
	for _, k := range []Kind{KindUnknown, KindUnsupported} {
		if _, ok := Identity(k); ok {
			t.Errorf("Identity(%s) = ok, want no pattern", k)
		}
	}
}

func TestIdentify(t *testing.T) {
	for _, k := range concreteKinds {
		id, _ := Identity(k)
		if got := identify(id[:]); got != k {
			t.Errorf("identify(%#v) = %s, want %s", id, got, k)
		}
	}

	if got := identify([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00}); got != KindUnsupported {
		t.Errorf("identify(garbage) = %s, want %s", got, KindUnsupported)
	}
	if got := identify([]byte{}); got != KindUnsupported {
		t.Errorf("identify(empty) = %s, want %s", got, KindUnsupported)
	}
}

func TestDecodeInterfaceErrors(t *testing.T) {
	payload := make([]byte, responseLenDefault)

	if _, err := DecodeInterface(KindMotionPlus, payload); !errors.Is(err, ErrUnsupportedDevice) {
		t.Errorf("motion-plus direct decode: err = %v, want ErrUnsupportedDevice", err)
	}
	if _, err := DecodeInterface(KindUnsupported, payload); !errors.Is(err, ErrUnsupportedDevice) {
		t.Errorf("unsupported kind: err = %v, want ErrUnsupportedDevice", err)
	}
	if _, err := DecodeInterface(KindNunchuck, []byte{0x01, 0x02}); !errors.Is(err, ErrInvalidData) {
		t.Errorf("short payload: err = %v, want ErrInvalidData", err)
	}
	if _, err := DecodeInterface(KindClassicController, nil); !errors.Is(err, ErrInvalidData) {
		t.Errorf("nil payload: err = %v, want ErrInvalidData", err)
	}
}

func TestKindAndStatusStrings(t *testing.T) {
	// Distinct values must stringify distinctly; the exact words are free
	// to change.
	seen := map[string]Kind{}
	for _, k := range append([]Kind{KindUnknown, KindUnsupported}, concreteKinds...) {
		s := k.String()
		if prev, dup := seen[s]; dup {
			t.Errorf("kinds %d and %d both stringify as %q", prev, k, s)
		}
		seen[s] = k
	}

	statuses := []Status{StatusNotInitialized, StatusConfiguring, StatusActive, StatusDisabled}
	seenS := map[string]Status{}
	for _, s := range statuses {
		str := s.String()
		if prev, dup := seenS[str]; dup {
			t.Errorf("statuses %d and %d both stringify as %q", prev, s, str)
		}
		seenS[str] = s
	}
}
