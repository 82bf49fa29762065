package xmongotest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xtenancy/pkg/storage/xmongo"
	"github.com/omeyang/xtenancy/pkg/storage/xmongo/xmongotest"
)

func TestDialer(t *testing.T) {
	d := xmongotest.NewDialer()

	b, err := d.Dial(context.Background(), "mongodb://localhost/tenant-a", nil)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", b.Name())
	assert.Nil(t, b.Database())

	require.NoError(t, b.CreateCollection(context.Background(), "animals", nil))
	require.NoError(t, b.CreateCollection(context.Background(), "animals", nil))
	fb := d.Backends()[0]
	assert.Equal(t, []string{"animals"}, fb.Collections())
	assert.Equal(t, 2, fb.CreateCalls("animals"))

	require.NoError(t, b.Close(context.Background()))
	assert.ErrorIs(t, b.Close(context.Background()), xmongo.ErrClosed)
	assert.True(t, fb.Closed())
	assert.Equal(t, 1, d.DialsFor("mongodb://localhost/tenant-a"))
}

func TestDialer_Fail(t *testing.T) {
	d := xmongotest.NewDialer()
	d.Fail(errors.New("refused"))
	_, err := d.Dial(context.Background(), "mongodb://localhost/a", nil)
	require.EqualError(t, err, "refused")
	assert.Empty(t, d.Backends())
	assert.Equal(t, 1, d.Dials())
}

func TestDialer_HoldRespectsContext(t *testing.T) {
	d := xmongotest.NewDialer()
	release := d.Hold()
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Dial(ctx, "mongodb://localhost/a", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialer_HoldCreate(t *testing.T) {
	d := xmongotest.NewDialer()
	b, err := d.Dial(context.Background(), "mongodb://localhost/a", nil)
	require.NoError(t, err)

	entered, release := d.HoldCreate()
	done := make(chan error, 1)
	go func() { done <- b.CreateCollection(context.Background(), "cats", nil) }()

	assert.Equal(t, "cats", <-entered)
	assert.Zero(t, d.Backends()[0].CreateCalls("cats"))
	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, d.Backends()[0].CreateCalls("cats"))

	// release 之后不再阻塞
	require.NoError(t, b.CreateCollection(context.Background(), "dogs", nil))
}
