package xpool_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xtenancy/pkg/storage/xmongo/xmongotest"
	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tenantURI(_ context.Context, tenant string) (string, error) {
	return "mongodb://localhost:27017/" + tenant, nil
}

func animalDef() xschema.ModelDefinition {
	return xschema.ModelDefinition{
		Name:   "Animal",
		Schema: xschema.Schema{DiscriminatorKey: "animalType"},
		Discriminators: []xschema.Discriminator{
			{Name: "MaineCoon"},
			{Name: "Beagle"},
		},
	}
}

type poolCase struct {
	dialer *xmongotest.Dialer
	reg    *xschema.Registry
	pool   *xpool.Pool
}

func newPool(t testing.TB, force bool, cfg func(*xpool.ProvisionerConfig), opts ...xpool.Option) *poolCase {
	t.Helper()
	d := xmongotest.NewDialer()
	reg := xschema.NewRegistry()
	_, err := reg.Register(animalDef())
	require.NoError(t, err)

	pc := xpool.ProvisionerConfig{
		Dialer:                 d,
		URI:                    tenantURI,
		ForceCreateCollections: force,
	}
	if cfg != nil {
		cfg(&pc)
	}
	prov, err := xpool.NewProvisioner(pc)
	require.NoError(t, err)
	p, err := xpool.New(prov, reg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return &poolCase{dialer: d, reg: reg, pool: p}
}

func TestNew_Validation(t *testing.T) {
	_, err := xpool.New(nil, xschema.NewRegistry())
	assert.ErrorIs(t, err, xpool.ErrNilProvisioner)

	prov, err := xpool.NewProvisioner(xpool.ProvisionerConfig{Dialer: xmongotest.NewDialer(), URI: tenantURI})
	require.NoError(t, err)
	_, err = xpool.New(prov, nil)
	assert.ErrorIs(t, err, xpool.ErrNilRegistry)

	_, err = xpool.NewProvisioner(xpool.ProvisionerConfig{URI: tenantURI})
	assert.ErrorIs(t, err, xpool.ErrNilDialer)
	_, err = xpool.NewProvisioner(xpool.ProvisionerConfig{Dialer: xmongotest.NewDialer()})
	assert.ErrorIs(t, err, xpool.ErrNilURIFunc)
}

func TestPool_Get_Caches(t *testing.T) {
	tc := newPool(t, false, nil)
	ctx := context.Background()

	c1, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)
	c2, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, tc.dialer.Dials())
	assert.Equal(t, "tenant1", c1.Tenant())
	assert.Equal(t, "tenant1", c1.Backend().Name())
	assert.NotEmpty(t, c1.ID())

	st := tc.pool.Stats()
	assert.Equal(t, 1, st.Connections)
	assert.EqualValues(t, 1, st.Misses)
	assert.EqualValues(t, 1, st.Hits)
}

func TestPool_Get_TenantsIsolated(t *testing.T) {
	tc := newPool(t, false, nil)
	ctx := context.Background()

	a, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)
	b, err := tc.pool.Get(ctx, "tenant2")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, []string{"tenant1", "tenant2"}, tc.pool.Tenants())
	assert.Equal(t, 2, tc.pool.Len())
}

func TestPool_Get_InvalidArgs(t *testing.T) {
	tc := newPool(t, false, nil)

	//nolint:staticcheck // 验证 nil ctx 防御
	_, err := tc.pool.Get(nil, "tenant1")
	assert.ErrorIs(t, err, xpool.ErrNilContext)

	_, err = tc.pool.Get(context.Background(), "")
	assert.ErrorIs(t, err, xpool.ErrEmptyTenant)
	assert.Zero(t, tc.dialer.Dials())
}

func TestPool_Get_ConcurrentSingleProvision(t *testing.T) {
	tc := newPool(t, true, nil)
	release := tc.dialer.Hold()

	const n = 32
	var (
		wg    sync.WaitGroup
		conns = make([]*xpool.Connection, n)
		errs  = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conns[i], errs[i] = tc.pool.Get(context.Background(), "tenant1")
		}()
	}

	require.Eventually(t, func() bool { return tc.dialer.Dials() == 1 }, time.Second, time.Millisecond)
	release()
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Same(t, conns[0], conns[i])
	}
	assert.Equal(t, 1, tc.dialer.Dials())
	assert.Equal(t, 1, tc.dialer.Backends()[0].CreateCalls("animals"))
}

func TestPool_Get_BindsModels(t *testing.T) {
	tc := newPool(t, false, nil)

	c, err := tc.pool.Get(context.Background(), "tenant1")
	require.NoError(t, err)

	names := make([]string, 0)
	for _, m := range c.Models() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"Animal", "MaineCoon", "Beagle"}, names)

	beagle, ok := c.Model("Beagle")
	require.True(t, ok)
	assert.Equal(t, "animals", beagle.CollectionName())
	assert.Equal(t, "Animal", beagle.Base())
	assert.Same(t, c, beagle.Connection())

	// 未开启强制物化时不创建集合
	assert.Empty(t, tc.dialer.Backends()[0].Collections())
	assert.False(t, c.Materialized("animals"))
}

func TestPool_Get_ForceCreateCollections(t *testing.T) {
	tc := newPool(t, true, nil)
	_, err := tc.reg.Register(xschema.ModelDefinition{Name: "Dog", Collection: "dogs"})
	require.NoError(t, err)

	c, err := tc.pool.Get(context.Background(), "tenant1")
	require.NoError(t, err)

	b := tc.dialer.Backends()[0]
	assert.Equal(t, []string{"animals", "dogs"}, b.Collections())
	assert.Equal(t, 1, b.CreateCalls("animals"))
	assert.True(t, c.Materialized("animals"))
	assert.True(t, c.Materialized("dogs"))
}

func TestPool_Get_LateRegistration(t *testing.T) {
	tc := newPool(t, true, nil)
	ctx := context.Background()

	first, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)
	_, ok := first.Model("Cat")
	assert.False(t, ok)

	_, err = tc.reg.Register(xschema.ModelDefinition{Name: "Cat"})
	require.NoError(t, err)

	second, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, tc.dialer.Dials())

	cat, ok := second.Model("Cat")
	require.True(t, ok)
	assert.Equal(t, "cats", cat.CollectionName())

	b := tc.dialer.Backends()[0]
	assert.Equal(t, 1, b.CreateCalls("cats"))
	// 已物化的集合不重复创建
	assert.Equal(t, 1, b.CreateCalls("animals"))
}

func TestPool_Get_RegistrationDuringMaterialize(t *testing.T) {
	tc := newPool(t, true, nil)
	ctx := context.Background()

	c, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)

	_, err = tc.reg.Register(xschema.ModelDefinition{Name: "Xylophone", Collection: "xes"})
	require.NoError(t, err)
	entered, release := tc.dialer.HoldCreate()
	defer release()

	first := make(chan error, 1)
	go func() {
		_, err := tc.pool.Get(ctx, "tenant1")
		first <- err
	}()
	require.Equal(t, "xes", <-entered)

	// 第一轮物化仍在进行时注册的定义
	_, err = tc.reg.Register(xschema.ModelDefinition{Name: "Yak", Collection: "ys"})
	require.NoError(t, err)
	second := make(chan error, 1)
	go func() {
		_, err := tc.pool.Get(ctx, "tenant1")
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)
	release()

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.True(t, c.Materialized("xes"))
	assert.True(t, c.Materialized("ys"))
	b := tc.dialer.Backends()[0]
	assert.Equal(t, 1, b.CreateCalls("ys"))
	assert.Equal(t, 1, b.CreateCalls("xes"))
}

func TestPool_Attach(t *testing.T) {
	tc := newPool(t, false, nil)
	ctx := context.Background()

	c, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)
	_, err = tc.reg.Register(xschema.ModelDefinition{Name: "Cat"})
	require.NoError(t, err)

	assert.Equal(t, 1, tc.pool.Attach())
	_, ok := c.Model("Cat")
	assert.True(t, ok)
	assert.Zero(t, tc.pool.Attach())
}

func TestPool_Get_FailureNotCached(t *testing.T) {
	tc := newPool(t, false, nil)
	ctx := context.Background()
	boom := errors.New("connection refused")
	tc.dialer.Fail(boom)

	_, err := tc.pool.Get(ctx, "tenant1")
	require.Error(t, err)
	assert.ErrorIs(t, err, xpool.ErrConnection)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, xpool.ErrTimeout)
	assert.Zero(t, tc.pool.Len())

	tc.dialer.Fail(nil)
	c, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, 2, tc.dialer.Dials())
	assert.EqualValues(t, 1, tc.pool.Stats().Failures)
}

func TestPool_Get_URIFailure(t *testing.T) {
	boom := errors.New("tenant unknown")
	tc := newPool(t, false, func(c *xpool.ProvisionerConfig) {
		c.URI = func(context.Context, string) (string, error) { return "", boom }
	})

	_, err := tc.pool.Get(context.Background(), "tenant1")
	assert.ErrorIs(t, err, xpool.ErrConnection)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, tc.dialer.Dials())
}

func TestPool_Get_MaterializeFailure(t *testing.T) {
	tc := newPool(t, true, nil)
	boom := errors.New("not authorized")
	tc.dialer.FailCreate(boom)

	_, err := tc.pool.Get(context.Background(), "tenant1")
	require.Error(t, err)
	assert.ErrorIs(t, err, xpool.ErrConnection)
	assert.ErrorIs(t, err, xpool.ErrMaterialize)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, tc.pool.Len())
	// 半成品连接被关闭
	assert.True(t, tc.dialer.Backends()[0].Closed())
}

func TestPool_Get_Timeout(t *testing.T) {
	tc := newPool(t, false, func(c *xpool.ProvisionerConfig) {
		c.Timeout = 20 * time.Millisecond
	})
	tc.dialer.Delay(time.Second)

	_, err := tc.pool.Get(context.Background(), "tenant1")
	require.Error(t, err)
	assert.ErrorIs(t, err, xpool.ErrConnection)
	assert.ErrorIs(t, err, xpool.ErrTimeout)
	assert.Zero(t, tc.pool.Len())
}

func TestPool_Get_CallerCanceled(t *testing.T) {
	tc := newPool(t, false, nil)
	tc.dialer.Delay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tc.pool.Get(ctx, "tenant1")
	require.Error(t, err)
	assert.ErrorIs(t, err, xpool.ErrConnection)
	// 调用方自己的截止时间不算创建超时
	assert.NotErrorIs(t, err, xpool.ErrTimeout)
}

func TestPool_Close(t *testing.T) {
	tc := newPool(t, false, nil)
	ctx := context.Background()

	_, err := tc.pool.Get(ctx, "tenant1")
	require.NoError(t, err)
	closeErr := errors.New("socket closed")
	tc.dialer.FailClose(closeErr)
	_, err = tc.pool.Get(ctx, "tenant2")
	require.NoError(t, err)

	err = tc.pool.Close(ctx)
	assert.ErrorIs(t, err, closeErr)
	for _, b := range tc.dialer.Backends() {
		assert.True(t, b.Closed(), b.URI)
		assert.Equal(t, 1, b.CloseCalls())
	}
	assert.Zero(t, tc.pool.Len())
	assert.True(t, tc.pool.Closed())

	_, err = tc.pool.Get(ctx, "tenant1")
	assert.ErrorIs(t, err, xpool.ErrPoolClosed)
	assert.ErrorIs(t, tc.pool.Close(ctx), xpool.ErrPoolClosed)
}

func TestPool_Close_Empty(t *testing.T) {
	tc := newPool(t, false, nil)
	assert.NoError(t, tc.pool.Close(context.Background()))
}

func TestPool_Close_DuringProvision(t *testing.T) {
	tc := newPool(t, false, nil)
	release := tc.dialer.Hold()

	errCh := make(chan error, 1)
	go func() {
		_, err := tc.pool.Get(context.Background(), "tenant1")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return tc.dialer.Dials() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, tc.pool.Close(context.Background()))
	release()

	assert.ErrorIs(t, <-errCh, xpool.ErrPoolClosed)
	assert.Zero(t, tc.pool.Len())
	require.Len(t, tc.dialer.Backends(), 1)
	assert.True(t, tc.dialer.Backends()[0].Closed())
}

func TestPool_Breaker(t *testing.T) {
	tc := newPool(t, false, nil, xpool.WithBreaker(xpool.BreakerConfig{
		Failures:    2,
		OpenTimeout: time.Minute,
	}))
	ctx := context.Background()
	tc.dialer.Fail(errors.New("connection refused"))

	for range 2 {
		_, err := tc.pool.Get(ctx, "tenant1")
		require.ErrorIs(t, err, xpool.ErrConnection)
		require.NotErrorIs(t, err, xpool.ErrBreakerOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, tc.pool.BreakerState("tenant1"))

	_, err := tc.pool.Get(ctx, "tenant1")
	assert.ErrorIs(t, err, xpool.ErrBreakerOpen)
	assert.ErrorIs(t, err, xpool.ErrConnection)
	assert.Equal(t, 2, tc.dialer.Dials())

	// 其他租户不受影响
	tc.dialer.Fail(nil)
	_, err = tc.pool.Get(ctx, "tenant2")
	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, tc.pool.BreakerState("tenant2"))
}

func TestPool_Breaker_IgnoresCallerCancel(t *testing.T) {
	tc := newPool(t, false, nil, xpool.WithBreaker(xpool.BreakerConfig{Failures: 1}))
	tc.dialer.Delay(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := tc.pool.Get(ctx, "tenant1")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return tc.dialer.Dials() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, tc.pool.BreakerState("tenant1"))
}
