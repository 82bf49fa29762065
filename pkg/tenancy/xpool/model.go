package xpool

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Model 绑定在某个租户连接上的模型。
type Model struct {
	name       string
	collection string
	// base 判别器所属的基础模型名，基础模型为空
	base      string
	key       string
	value     any
	validator bson.M
	conn      *Connection
}

func (m *Model) Name() string { return m.name }

// CollectionName 判别器模型返回基础模型的集合。
func (m *Model) CollectionName() string { return m.collection }

// Base 判别器所属的基础模型名，基础模型返回空字符串。
func (m *Model) Base() string { return m.base }

func (m *Model) IsDiscriminator() bool { return m.base != "" }

// DiscriminatorKey 判别器字段名
func (m *Model) DiscriminatorKey() string { return m.key }

// DiscriminatorValue 判别器值，基础模型返回 nil。
func (m *Model) DiscriminatorValue() any { return m.value }

// Connection 模型所在的连接
func (m *Model) Connection() *Connection { return m.conn }

// Collection 返回底层集合句柄，连接没有数据库句柄时返回 nil。
func (m *Model) Collection() *mongo.Collection {
	db := m.conn.backend.Database()
	if db == nil {
		return nil
	}
	return db.Collection(m.collection)
}

// Filter 返回 filter 的副本；判别器模型会追加判别器条件，覆盖同名条件。
func (m *Model) Filter(filter bson.D) bson.D {
	out := make(bson.D, 0, len(filter)+1)
	for _, e := range filter {
		if m.IsDiscriminator() && e.Key == m.key {
			continue
		}
		out = append(out, e)
	}
	if m.IsDiscriminator() {
		out = append(out, bson.E{Key: m.key, Value: m.value})
	}
	return out
}

// Document 把 doc 转为 bson.D；判别器模型会写入判别器字段。
func (m *Model) Document(doc any) (bson.D, error) {
	var d bson.D
	switch v := doc.(type) {
	case bson.D:
		d = append(bson.D(nil), v...)
	default:
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("xpool: encode %s document: %w", m.name, err)
		}
		if err := bson.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("xpool: decode %s document: %w", m.name, err)
		}
	}
	if !m.IsDiscriminator() {
		return d, nil
	}
	return m.Filter(d), nil
}

func (m *Model) coll() (*mongo.Collection, error) {
	if m.conn.Closed() {
		return nil, ErrConnectionClosed
	}
	c := m.Collection()
	if c == nil {
		return nil, ErrNoDatabase
	}
	return c, nil
}

// InsertOne 写入一个文档，返回 _id。
func (m *Model) InsertOne(ctx context.Context, doc any) (any, error) {
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	d, err := m.Document(doc)
	if err != nil {
		return nil, err
	}
	res, err := c.InsertOne(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("xpool: insert %s: %w", m.name, err)
	}
	return res.InsertedID, nil
}

// Find 查询并解码到 results（切片指针）。
func (m *Model) Find(ctx context.Context, filter bson.D, results any, opts ...options.Lister[options.FindOptions]) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	cur, err := c.Find(ctx, m.Filter(filter), opts...)
	if err != nil {
		return fmt.Errorf("xpool: find %s: %w", m.name, err)
	}
	if err := cur.All(ctx, results); err != nil {
		return fmt.Errorf("xpool: decode %s: %w", m.name, err)
	}
	return nil
}

// CountDocuments 统计匹配的文档数。
func (m *Model) CountDocuments(ctx context.Context, filter bson.D) (int64, error) {
	c, err := m.coll()
	if err != nil {
		return 0, err
	}
	n, err := c.CountDocuments(ctx, m.Filter(filter))
	if err != nil {
		return 0, fmt.Errorf("xpool: count %s: %w", m.name, err)
	}
	return n, nil
}

// DeleteMany 删除匹配的文档，返回删除数量。
func (m *Model) DeleteMany(ctx context.Context, filter bson.D) (int64, error) {
	c, err := m.coll()
	if err != nil {
		return 0, err
	}
	res, err := c.DeleteMany(ctx, m.Filter(filter))
	if err != nil {
		return 0, fmt.Errorf("xpool: delete %s: %w", m.name, err)
	}
	return res.DeletedCount, nil
}
