package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcore/cyclerd/router"
)

type fakeProvider map[string]any

func (p fakeProvider) Fields() []router.Field {
	out := make([]router.Field, 0, len(p))
	for k := range p {
		out = append(out, router.Field{Path: k, TypeTag: "any"})
	}
	return out
}

func (p fakeProvider) Get(path string) (any, error) {
	v, ok := p[path]
	if !ok {
		return nil, assertErr(path)
	}
	return v, nil
}

type assertErr string

func (e assertErr) Error() string { return "no such field: " + string(e) }

func newTestRouter(t *testing.T) *router.Router {
	t.Helper()
	r := router.New()
	require.NoError(t, r.Register("vision", fakeProvider{"ball.x": 1.0}))
	return r
}

func TestSubscribe_DuplicateIDFails(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	require.NoError(t, p.Subscribe("client-1", 1, "vision", "ball.x", FormatTextual, false))

	err := p.Subscribe("client-1", 1, "vision", "ball.x", FormatTextual, false)
	assert.ErrorContains(t, err, "already subscribed with id 1")
}

func TestUnsubscribe_UnknownFails(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	err := p.Unsubscribe("client-1", 99)
	assert.Error(t, err)
}

func TestUnsubscribe_TwiceFailsSecondTime(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	require.NoError(t, p.Subscribe("client-1", 1, "vision", "ball.x", FormatTextual, false))
	require.NoError(t, p.Unsubscribe("client-1", 1))

	err := p.Unsubscribe("client-1", 1)
	assert.Error(t, err)
}

func TestUnsubscribeEverything_RemovesAllSilently(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	require.NoError(t, p.Subscribe("client-1", 1, "vision", "ball.x", FormatTextual, false))
	require.NoError(t, p.Subscribe("client-1", 2, "vision", "ball.x", FormatTextual, false))

	p.UnsubscribeEverything("client-1")

	err := p.Unsubscribe("client-1", 1)
	assert.Error(t, err)
}

func TestNotify_TextualBatchesValues(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	require.NoError(t, p.Subscribe("client-1", 1, "vision", "ball.x", FormatTextual, false))

	resp, bin := p.Notify("client-1", nil)
	assert.Empty(t, bin)
	assert.Equal(t, 1.0, resp.Values[1])
}

func TestNotify_BinaryDeliversReference(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	require.NoError(t, p.Subscribe("client-1", 1, "vision", "ball.x", FormatBinary, false))

	resp, bin := p.Notify("client-1", nil)
	require.Len(t, bin, 1)
	ref, ok := resp.Values[1].(BinaryReference)
	require.True(t, ok)
	assert.Equal(t, bin[0].ReferenceID, ref.ID)
}

func TestNotify_OnceRemovedAfterDelivery(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	require.NoError(t, p.Subscribe("client-1", 1, "vision", "ball.x", FormatTextual, true))

	resp, _ := p.Notify("client-1", nil)
	require.Contains(t, resp.Values, uint64(1))

	err := p.Unsubscribe("client-1", 1)
	assert.Error(t, err, "once-subscription should already be gone")
}

func TestNotify_SerializationErrorRetainsSubscription(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	require.NoError(t, p.Subscribe("client-1", 1, "vision", "missing.path", FormatTextual, false))

	var loggedErrs int
	resp, _ := p.Notify("client-1", func(uint64, error) { loggedErrs++ })
	assert.Equal(t, 1, loggedErrs)
	assert.Empty(t, resp.Values)

	// still live: unsubscribing it now should succeed
	assert.NoError(t, p.Unsubscribe("client-1", 1))
}

func TestIsPathLive(t *testing.T) {
	p := NewProvider(SubjectOutputs, newTestRouter(t))
	assert.False(t, p.IsPathLive("vision", "ball.x"))

	require.NoError(t, p.Subscribe("client-1", 1, "vision", "ball.x", FormatTextual, false))
	assert.True(t, p.IsPathLive("vision", "ball.x"))

	require.NoError(t, p.Unsubscribe("client-1", 1))
	assert.False(t, p.IsPathLive("vision", "ball.x"))
}
