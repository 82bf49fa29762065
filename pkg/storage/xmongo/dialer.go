package xmongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
)

// Dialer 按 URI 打开 Backend。
type Dialer interface {
	// Dial 打开连接。opts 可为 nil，非 nil 时覆盖基线参数。
	Dial(ctx context.Context, uri string, opts *options.ClientOptions) (Backend, error)
}

// DialerFunc 函数适配器
type DialerFunc func(ctx context.Context, uri string, opts *options.ClientOptions) (Backend, error)

// Dial 调用 f。
func (f DialerFunc) Dial(ctx context.Context, uri string, opts *options.ClientOptions) (Backend, error) {
	return f(ctx, uri, opts)
}

type driverDialer struct {
	options *Options
}

// NewDialer 创建基于 mongo-driver 的 Dialer。
func NewDialer(opts ...Option) Dialer {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &driverDialer{options: o}
}

// BaseClientOptions 返回 uri 对应的基线连接参数。
func (d *driverDialer) BaseClientOptions(uri string) *options.ClientOptions {
	return options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(d.options.ServerSelectionTimeout).
		SetConnectTimeout(d.options.ConnectTimeout).
		SetAppName(d.options.AppName)
}

func (d *driverDialer) Dial(ctx context.Context, uri string, extra *options.ClientOptions) (b Backend, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	name, err := DatabaseName(uri)
	if err != nil {
		return nil, err
	}

	ctx, span := xmetrics.Start(ctx, d.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: "dial",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.name", name)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	all := []*options.ClientOptions{d.BaseClientOptions(uri)}
	if extra != nil {
		all = append(all, extra)
	}
	client, err := mongo.Connect(all...)
	if err != nil {
		return nil, fmt.Errorf("xmongo dial %s: %w", name, err)
	}

	if d.options.PingOnDial {
		if err = client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("xmongo dial %s: ping: %w", name, err)
		}
	}

	db := client.Database(name)
	return &mongoBackend{name: name, db: db, client: client, dbOps: db, options: d.options}, nil
}
