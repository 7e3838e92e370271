package feed

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"

	"quantedge-ta/internal/model"
)

const klineRows = `1609459200000,28923.63,29031.34,28690.17,28995.13,2311.81,1609459259999,66768870.9,58389,1215.77,35121165.4,0
1609459260000,28995.13,29470.00,28960.35,29409.99,3693.56,1609459319999,107891134.7,83145,2010.11,58732183.1,0
1609459320000,29409.99,29465.26,29120.03,29194.65,2655.49,1609459379999,77724106.2,61797,1244.82,36437229.8,0
`

func TestReader_KlineLayout(t *testing.T) {
	r, err := NewReader(strings.NewReader(klineRows))
	assert.Nil(t, err)
	got, err := r.ReadAll()
	assert.Nil(t, err)

	want := []model.Observation{
		{TS: 1609459200000, Close: 28995.13},
		{TS: 1609459260000, Close: 29409.99},
		{TS: 1609459320000, Close: 29194.65},
	}
	assert.Equal(t, got, want)
}

func TestReader_HeaderedLayout(t *testing.T) {
	in := "open_time,close\n100,1.5\n200,2.5\n200,2.75\n"
	r, err := NewReader(strings.NewReader(in))
	assert.Nil(t, err)
	got, err := r.ReadAll()
	assert.Nil(t, err)

	// the repeated timestamp is a repaint of bar 200 and passes through
	want := []model.Observation{
		{TS: 100, Close: 1.5},
		{TS: 200, Close: 2.5},
		{TS: 200, Close: 2.75},
	}
	assert.Equal(t, got, want)
}

func TestReader_HeaderColumnOrderIsFree(t *testing.T) {
	in := "close,volume,open_time\n9.5,12,77\n"
	r, err := NewReader(strings.NewReader(in))
	assert.Nil(t, err)
	got, err := r.ReadAll()
	assert.Nil(t, err)
	assert.Equal(t, got, []model.Observation{{TS: 77, Close: 9.5}})
}

func TestReader_RejectsDecreasingTimestamps(t *testing.T) {
	in := "open_time,close\n200,2\n100,1\n"
	r, err := NewReader(strings.NewReader(in))
	assert.Nil(t, err)
	_, err = r.ReadAll()
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("got %v, want ErrOutOfOrder", err)
	}
}

func TestReader_RejectsNonFiniteClose(t *testing.T) {
	for _, bad := range []string{"NaN", "+Inf", "-Inf"} {
		in := "open_time,close\n100," + bad + "\n"
		r, err := NewReader(strings.NewReader(in))
		assert.Nil(t, err)
		_, err = r.ReadAll()
		if !errors.Is(err, ErrNonFiniteClose) {
			t.Fatalf("close %s: got %v, want ErrNonFiniteClose", bad, err)
		}
	}
}

func TestReader_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "hello,world\n1,2\n", "a,b,c\n"} {
		if _, err := NewReader(strings.NewReader(in)); !errors.Is(err, ErrUnknownLayout) {
			t.Fatalf("input %q: got %v, want ErrUnknownLayout", in, err)
		}
	}
}

func TestReader_NextStreamsOneAtATime(t *testing.T) {
	r, err := NewReader(strings.NewReader(klineRows))
	assert.Nil(t, err)
	var count int
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		assert.Nil(t, err)
		count++
	}
	assert.Equal(t, count, 3)
}
