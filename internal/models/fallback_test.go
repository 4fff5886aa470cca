package models

import (
	"errors"
	"testing"
)

func TestFallbacks(t *testing.T) {
	errFetch := errors.New("connection refused")

	if r := ReadingOrPlaceholder(nil, errFetch); !r.IsPlaceholder() {
		t.Errorf("ReadingOrPlaceholder() on error = %+v, want placeholder", r)
	}
	if r := ReadingOrPlaceholder(nil, nil); !r.IsPlaceholder() {
		t.Errorf("ReadingOrPlaceholder() on nil = %+v, want placeholder", r)
	}
	reading := &Reading{Temperature: 21}
	if r := ReadingOrPlaceholder(reading, nil); r != reading {
		t.Errorf("ReadingOrPlaceholder() = %+v, want the fetched reading", r)
	}

	if s := SeriesOrEmpty([]Reading{{Temperature: 1}}, errFetch); s == nil || len(s) != 0 {
		t.Errorf("SeriesOrEmpty() on error = %v, want empty non-nil", s)
	}
	if s := SeriesOrEmpty(nil, nil); s == nil {
		t.Error("SeriesOrEmpty(nil) should be non-nil")
	}
	if s := SeriesOrEmpty([]Reading{{Temperature: 1}}, nil); len(s) != 1 {
		t.Errorf("SeriesOrEmpty() = %v, want the fetched series", s)
	}

	if st := StatusOrDisconnected(&DeviceStatus{Connected: true}, errFetch); st.Connected {
		t.Error("StatusOrDisconnected() on error should be disconnected")
	}
	if st := StatusOrDisconnected(&DeviceStatus{Connected: true}, nil); !st.Connected {
		t.Error("StatusOrDisconnected() should keep the fetched status")
	}
}
