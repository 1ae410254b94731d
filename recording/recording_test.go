package recording

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcore/cyclerd/cycler"
	"github.com/fieldcore/cyclerd/hardware"
)

func TestBackpressureError_UnwrapsToUnderlyingError(t *testing.T) {
	inner := errors.New("disk full")
	err := &BackpressureError{Instance: "vision", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "vision")
}

func TestGobEncodeDecode_Roundtrip(t *testing.T) {
	type payload struct {
		X float64
		Y string
	}
	in := payload{X: 1.5, Y: "ball"}

	b, err := Encode(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, Decode(b, &out))
	assert.Equal(t, in, out)
}

func TestBoltSink_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.bolt")
	sink, err := OpenBoltSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	now := time.Unix(1000, 0)
	frame := cycler.Frame{
		Instance: "vision",
		Index:    0,
		Now:      now,
		Duration: 2 * time.Millisecond,
		Bytes:    []byte("frame-zero"),
	}
	require.NoError(t, sink.Write(frame))

	gotBytes, gotNow, gotDur, err := sink.Read("vision", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame-zero"), gotBytes)
	assert.True(t, now.Equal(gotNow))
	assert.Equal(t, 2*time.Millisecond, gotDur)

	n, err := sink.Count("vision")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBoltSink_ReadMissingFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.bolt")
	sink, err := OpenBoltSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	_, _, _, err = sink.Read("vision", 0)
	assert.Error(t, err)
}

func TestTriggers(t *testing.T) {
	assert.True(t, Always{}.ShouldRecord(time.Now(), 0))

	every3 := EveryNth{N: 3}
	assert.True(t, every3.ShouldRecord(time.Now(), 0))
	assert.False(t, every3.ShouldRecord(time.Now(), 1))
	assert.True(t, every3.ShouldRecord(time.Now(), 3))

	gated := HardwareGated{Hardware: hardware.NullInterface{}}
	assert.True(t, gated.ShouldRecord(time.Now(), 0))
}

type fakeReplayInstance struct {
	name  string
	seen  []string
	times []time.Time
}

func (f *fakeReplayInstance) Name() string { return f.name }

func (f *fakeReplayInstance) RunFromFrame(now time.Time, frameBytes []byte) error {
	f.seen = append(f.seen, string(frameBytes))
	f.times = append(f.times, now)
	return nil
}

func TestReplayDriver_RunsFramesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.bolt")
	sink, err := OpenBoltSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, sink.Write(cycler.Frame{
			Instance: "motion",
			Index:    i,
			Now:      time.Unix(int64(i), 0),
			Bytes:    []byte{byte('a' + i)},
		}))
	}

	inst := &fakeReplayInstance{name: "motion"}
	driver := &Driver{Sink: sink, Instance: inst}

	require.NoError(t, driver.Run(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, inst.seen)
}
