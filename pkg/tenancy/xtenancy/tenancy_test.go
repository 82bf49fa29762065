package xtenancy_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
	"github.com/omeyang/xtenancy/pkg/context/xtenant"
	"github.com/omeyang/xtenancy/pkg/storage/xmongo/xmongotest"
	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
	"github.com/omeyang/xtenancy/pkg/tenancy/xtenancy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const uriTemplate = "mongodb://localhost:27017/{tenant}"

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

func newTenancy(t *testing.T, d *xmongotest.Dialer, opts ...xtenancy.Option) *xtenancy.Tenancy {
	t.Helper()
	base := []xtenancy.Option{
		xtenancy.WithIdentifier("X-Tenant-Id"),
		xtenancy.WithURITemplate(uriTemplate),
		xtenancy.WithDialer(d),
	}
	tn, err := xtenancy.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tn.Close(context.Background()) })
	return tn
}

func httpSource(tenant string) xtenant.Source {
	h := http.Header{}
	if tenant != "" {
		h.Set("X-Tenant-Id", tenant)
	}
	return xtenant.Source{Kind: xtenant.KindHTTP, Host: "api.example.com", Header: h}
}

func TestNew_MissingURI(t *testing.T) {
	_, err := xtenancy.New(xtenancy.WithIdentifier("X-Tenant-Id"))
	assert.ErrorIs(t, err, xtenancy.ErrMissingURI)

	_, err = xtenancy.New(xtenancy.WithURITemplate("  "))
	assert.ErrorIs(t, err, xtenancy.ErrMissingURI)
}

func TestResolve_SameTenantSameConnection(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d)
	ctx := context.Background()

	a, err := tn.Resolve(ctx, httpSource("tenant1"))
	require.NoError(t, err)
	b, err := tn.Resolve(ctx, httpSource("tenant1"))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, d.Dials())
	assert.Equal(t, 1, d.DialsFor("mongodb://localhost:27017/tenant1"))
}

func TestResolve_ExtractFailure(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d)

	_, err := tn.Resolve(context.Background(), httpSource(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, xtenant.ErrMissingIdentifier)
	assert.Equal(t, http.StatusBadRequest, xtenancy.HTTPStatus(err))
	assert.Zero(t, d.Dials())
}

func TestResolve_RejectsReservedCharacters(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d)
	ctx := context.Background()

	for _, id := range []string{
		"acme?appName=evil&directConnection=true&maxPoolSize=100000",
		"evil.example.com:27017",
		"user@host",
		"a/b",
		"a%2Fb",
		"a b",
	} {
		_, err := tn.Resolve(ctx, httpSource(id))
		require.ErrorIs(t, err, xtenant.ErrUnsafeIdentifier, id)
		assert.Equal(t, http.StatusBadRequest, xtenancy.HTTPStatus(err), id)

		_, err = tn.ResolveID(ctx, id)
		assert.ErrorIs(t, err, xtenant.ErrUnsafeIdentifier, id)
	}
	assert.Zero(t, d.Dials())
	assert.Zero(t, tn.Pool().Len())
}

func TestResolve_URITemplateEscapesTenant(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d)

	conn, err := tn.ResolveID(context.Background(), "租户")
	require.NoError(t, err)
	assert.Equal(t, "租户", conn.Tenant())
	assert.Equal(t, 1, d.DialsFor("mongodb://localhost:27017/%E7%A7%9F%E6%88%B7"))
}

func TestResolve_NotConfigured(t *testing.T) {
	d := xmongotest.NewDialer()
	tn, err := xtenancy.New(xtenancy.WithURITemplate(uriTemplate), xtenancy.WithDialer(d))
	require.NoError(t, err)
	defer func() { _ = tn.Close(context.Background()) }()

	_, err = tn.Resolve(context.Background(), httpSource("tenant1"))
	assert.ErrorIs(t, err, xtenant.ErrMissingConfig)
}

func TestResolve_Subdomain(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d, xtenancy.WithIdentifier(""), xtenancy.WithSubdomain(true))

	conn, err := tn.Resolve(context.Background(), xtenant.Source{
		Kind: xtenant.KindHTTP,
		Host: "acme.example.com:8080",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", conn.Tenant())
	assert.Equal(t, "acme", conn.Backend().Name())
}

func TestResolve_URIFunc(t *testing.T) {
	d := xmongotest.NewDialer()
	var mu sync.Mutex
	var seen []string
	tn := newTenancy(t, d, xtenancy.WithURI(func(_ context.Context, id string) (string, error) {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
		return "mongodb://db-" + id + ":27017/app", nil
	}))

	conn, err := tn.ResolveID(context.Background(), "tenant1")
	require.NoError(t, err)
	assert.Equal(t, "app", conn.Backend().Name())
	assert.Equal(t, []string{"tenant1"}, seen)
}

func TestResolve_ClientOptionsFailure(t *testing.T) {
	d := xmongotest.NewDialer()
	boom := errors.New("vault unavailable")
	tn := newTenancy(t, d, xtenancy.WithClientOptions(func(context.Context) (*options.ClientOptions, error) {
		return nil, boom
	}))

	_, err := tn.ResolveID(context.Background(), "tenant1")
	assert.ErrorIs(t, err, xpool.ErrConnection)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, http.StatusServiceUnavailable, xtenancy.HTTPStatus(err))
	assert.Zero(t, tn.Pool().Len())
}

func TestResolve_Validator(t *testing.T) {
	ctrl := gomock.NewController(t)
	v := NewMockValidator(ctrl)
	denied := errors.New("tenant suspended")
	v.EXPECT().Validate(gomock.Any(), "tenant1").Return(nil)
	v.EXPECT().Validate(gomock.Any(), "tenant2").Return(denied)

	d := xmongotest.NewDialer()
	tn := newTenancy(t, d, xtenancy.WithValidator(v))
	ctx := context.Background()

	_, err := tn.ResolveID(ctx, "tenant1")
	require.NoError(t, err)

	_, err = tn.ResolveID(ctx, "tenant2")
	require.Error(t, err)
	assert.ErrorIs(t, err, xtenancy.ErrValidationFailed)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, http.StatusForbidden, xtenancy.HTTPStatus(err))
	// 校验失败不会建连接
	assert.Equal(t, 1, d.Dials())
}

func TestResolve_ValidationCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	v := NewMockValidator(ctrl)
	v.EXPECT().Validate(gomock.Any(), "tenant1").Return(nil).Times(2)

	tn := newTenancy(t, xmongotest.NewDialer(),
		xtenancy.WithValidator(v),
		xtenancy.WithValidationCache(time.Minute, 16))
	ctx := context.Background()

	for range 3 {
		_, err := tn.ResolveID(ctx, "tenant1")
		require.NoError(t, err)
	}
	tn.ForgetValidations()
	_, err := tn.ResolveID(ctx, "tenant1")
	require.NoError(t, err)
}

func TestResolve_ValidationFailureNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	v := NewMockValidator(ctrl)
	gomock.InOrder(
		v.EXPECT().Validate(gomock.Any(), "tenant1").Return(errors.New("unknown")),
		v.EXPECT().Validate(gomock.Any(), "tenant1").Return(nil),
	)

	tn := newTenancy(t, xmongotest.NewDialer(),
		xtenancy.WithValidator(v),
		xtenancy.WithValidationCache(time.Minute, 16))
	ctx := context.Background()

	_, err := tn.ResolveID(ctx, "tenant1")
	require.ErrorIs(t, err, xtenancy.ErrValidationFailed)
	_, err = tn.ResolveID(ctx, "tenant1")
	require.NoError(t, err)
}

func TestRegister(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d, xtenancy.WithForceCreateCollections(true))
	ctx := context.Background()

	require.NoError(t, tn.Register(animalDef()))
	conn, err := tn.ResolveID(ctx, "tenant1")
	require.NoError(t, err)
	assert.Equal(t, []string{"animals"}, d.Backends()[0].Collections())

	// 晚注册的定义立即绑定到已缓存的连接
	require.NoError(t, tn.Register(xschema.ModelDefinition{Name: "Cat"}))
	_, ok := conn.Model("Cat")
	assert.True(t, ok)

	_, err = tn.ResolveID(ctx, "tenant1")
	require.NoError(t, err)
	assert.Equal(t, []string{"animals", "cats"}, d.Backends()[0].Collections())

	// 重复与非法定义
	err = tn.Register(xschema.ModelDefinition{Name: "Cat", Collection: "felines"}, xschema.ModelDefinition{})
	assert.ErrorIs(t, err, xschema.ErrInvalidDefinition)
	def, _ := tn.Registry().Get("Cat")
	assert.Empty(t, def.Collection)
}

// 两个租户的同名判别器模型互不影响。
func TestResolve_DiscriminatorIsolation(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d)
	require.NoError(t, tn.Register(
		xschema.ModelDefinition{
			Name: "Club",
			Discriminators: []xschema.Discriminator{
				{Name: "DogClub"},
				{Name: "CatClub"},
			},
		},
	))
	ctx := context.Background()

	dogs, err := tn.ResolveID(ctx, "dogs")
	require.NoError(t, err)
	cats, err := tn.ResolveID(ctx, "cats")
	require.NoError(t, err)

	dm, ok := dogs.Model("DogClub")
	require.True(t, ok)
	cm, ok := cats.Model("DogClub")
	require.True(t, ok)

	assert.NotSame(t, dm, cm)
	assert.Same(t, dogs, dm.Connection())
	assert.Same(t, cats, cm.Connection())
	assert.Equal(t, "dogs", dm.Connection().Backend().Name())
	assert.Equal(t, "cats", cm.Connection().Backend().Name())
	assert.Equal(t, dm.Filter(nil), cm.Filter(nil))
}

func TestBind(t *testing.T) {
	tn := newTenancy(t, xmongotest.NewDialer())
	require.NoError(t, tn.Register(animalDef()))

	ctx, conn, err := tn.Bind(context.Background(), httpSource("tenant1"))
	require.NoError(t, err)
	assert.Equal(t, "tenant1", xctx.TenantID(ctx))

	got, err := xtenancy.ConnectionFrom(ctx)
	require.NoError(t, err)
	assert.Same(t, conn, got)

	m, err := xtenancy.ModelFrom(ctx, "Beagle")
	require.NoError(t, err)
	assert.Equal(t, "animals", m.CollectionName())

	_, err = xtenancy.ModelFrom(ctx, "Unicorn")
	assert.ErrorIs(t, err, xtenancy.ErrUnknownModel)
	_, err = xtenancy.ConnectionFrom(context.Background())
	assert.ErrorIs(t, err, xtenancy.ErrNoConnection)
}

func TestClose(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := tn.ResolveID(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, tn.Close(ctx))
	for _, b := range d.Backends() {
		assert.True(t, b.Closed())
	}

	_, err := tn.ResolveID(ctx, "a")
	assert.ErrorIs(t, err, xpool.ErrPoolClosed)
	assert.Equal(t, http.StatusServiceUnavailable, xtenancy.HTTPStatus(err))
}

func TestResolve_ConcurrentTenants(t *testing.T) {
	d := xmongotest.NewDialer()
	tn := newTenancy(t, d)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := []string{"t1", "t2", "t3", "t4"}[i%4]
			_, err := tn.ResolveID(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, d.Dials())
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, tn.Pool().Tenants())
}

func TestConfig_Options(t *testing.T) {
	cfg := xtenancy.Config{
		Identifier:             "tenantId",
		URI:                    uriTemplate,
		ForceCreateCollections: true,
	}
	d := xmongotest.NewDialer()
	tn, err := xtenancy.New(append(cfg.Options(), xtenancy.WithDialer(d))...)
	require.NoError(t, err)
	defer func() { _ = tn.Close(context.Background()) }()

	assert.Equal(t, "tenantId", tn.Extractor().Identifier)
	conn, err := tn.Resolve(context.Background(), xtenant.FromPayload(map[string]any{"tenantId": 42}))
	require.NoError(t, err)
	assert.Equal(t, "42", conn.Tenant())

	_, err = xtenancy.New(xtenancy.Config{Identifier: "x"}.Options()...)
	assert.ErrorIs(t, err, xtenancy.ErrMissingURI)
}
