package privacy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmind-dev/chatmind/pkg/config"
	"github.com/chatmind-dev/chatmind/pkg/embedder"
)

type fakeExternal struct {
	calls []string
	vec   []float64
	err   error
}

func (f *fakeExternal) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func TestHighTierNeverCallsExternal(t *testing.T) {
	fake := &fakeExternal{vec: []float64{1, 2, 3}}
	r := NewRouter(config.PrivacyHigh, false, embedder.NewLocal(16), fake)

	for i := 0; i < 10; i++ {
		_, _, err := r.Embed(context.Background(), "my email is a@b.com")
		require.NoError(t, err)
	}

	assert.Empty(t, fake.calls)
	assert.Equal(t, int64(0), r.Snapshot().External)
	assert.Equal(t, int64(10), r.Snapshot().Total)
}

func TestMediumTierAnonymisesSensitiveTextBeforeExternal(t *testing.T) {
	fake := &fakeExternal{vec: []float64{1, 2, 3}}
	r := NewRouter(config.PrivacyMedium, false, embedder.NewLocal(16), fake)

	_, method, err := r.Embed(context.Background(), "my email is a@b.com and token: xyz")
	require.NoError(t, err)
	assert.Equal(t, "external", method)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "my email is [EMAIL] and [TOKEN]", fake.calls[0])
	assert.Equal(t, int64(1), r.Snapshot().Filtered)
}

func TestMediumTierSendsNonSensitiveTextUnchanged(t *testing.T) {
	fake := &fakeExternal{vec: []float64{1, 2, 3}}
	r := NewRouter(config.PrivacyMedium, false, embedder.NewLocal(16), fake)

	_, _, err := r.Embed(context.Background(), "deploy the service tomorrow")
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "deploy the service tomorrow", fake.calls[0])
	assert.Equal(t, int64(0), r.Snapshot().Filtered)
}

func TestLowTierAlwaysSendsUnchanged(t *testing.T) {
	fake := &fakeExternal{vec: []float64{1, 2, 3}}
	r := NewRouter(config.PrivacyLow, false, embedder.NewLocal(16), fake)

	_, _, err := r.Embed(context.Background(), "my email is a@b.com")
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "my email is a@b.com", fake.calls[0])
}

func TestEmptyInputBypassesExternalRegardlessOfTier(t *testing.T) {
	fake := &fakeExternal{vec: []float64{1, 2, 3}}
	r := NewRouter(config.PrivacyLow, false, embedder.NewLocal(128), fake)

	v, method, err := r.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, embedder.MethodZeroVector, method)
	assert.Len(t, v, 128)
	assert.Empty(t, fake.calls)
}

func TestExternalErrorPropagates(t *testing.T) {
	fake := &fakeExternal{err: errors.New("boom")}
	r := NewRouter(config.PrivacyLow, false, embedder.NewLocal(16), fake)

	_, _, err := r.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestComplianceScoreHighTierWithZDR(t *testing.T) {
	r := NewRouter(config.PrivacyHigh, true, embedder.NewLocal(16), nil)
	_, _, _ = r.Embed(context.Background(), "hello")

	score := r.ComplianceScore()
	// base 80 + 15 ZDR + up to 5 local-rate (local rate is 1.0 here) = 100
	assert.Equal(t, 100.0, score)
}

func TestComplianceScoreCapsAt100(t *testing.T) {
	r := NewRouter(config.PrivacyHigh, true, embedder.NewLocal(16), nil)
	for i := 0; i < 5; i++ {
		_, _, _ = r.Embed(context.Background(), "hello")
	}
	assert.Equal(t, 100.0, r.ComplianceScore())
}

func TestComplianceScoreLowTierNoZDRNoLocal(t *testing.T) {
	fake := &fakeExternal{vec: []float64{1}}
	r := NewRouter(config.PrivacyLow, false, embedder.NewLocal(16), fake)
	_, _, _ = r.Embed(context.Background(), "hello")

	assert.Equal(t, 40.0, r.ComplianceScore())
}
