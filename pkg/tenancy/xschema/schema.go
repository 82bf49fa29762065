package xschema

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultDiscriminatorKey 判别器字段的默认名称
const DefaultDiscriminatorKey = "__t"

// Schema 模型的结构描述。
//
// 字段校验由外部 ORM 负责，这里只保留物化集合与判别器路由需要的信息。
type Schema struct {
	// DiscriminatorKey 判别器字段名，为空时使用 DefaultDiscriminatorKey
	DiscriminatorKey string
	// Validator 创建集合时设置的 $jsonSchema 校验器，可为空
	Validator bson.M
}

// Key 返回生效的判别器字段名。
func (s Schema) Key() string {
	if s.DiscriminatorKey == "" {
		return DefaultDiscriminatorKey
	}
	return s.DiscriminatorKey
}

// Discriminator 挂在基础模型下的子模型，与基础模型共用集合，按 Value 区分。
type Discriminator struct {
	Name   string
	Schema Schema
	// Value 写入判别器字段的值，为空时使用 Name
	Value any
}

// TagValue 返回生效的判别器值。
func (d Discriminator) TagValue() any {
	if d.Value == nil {
		return d.Name
	}
	if s, ok := d.Value.(string); ok && s == "" {
		return d.Name
	}
	return d.Value
}

// ModelDefinition 模型定义
type ModelDefinition struct {
	Name   string
	Schema Schema
	// Collection 集合名，为空时由 Name 推导
	Collection     string
	Discriminators []Discriminator
}

// CollectionName 返回生效的集合名。
func (d ModelDefinition) CollectionName() string {
	if d.Collection != "" {
		return d.Collection
	}
	return Pluralize(d.Name)
}

// clone 深拷贝切片与校验器，注册表对外返回的定义不与内部共享可变状态。
func (d ModelDefinition) clone() ModelDefinition {
	d.Schema = d.Schema.clone()
	if d.Discriminators != nil {
		ds := make([]Discriminator, len(d.Discriminators))
		for i, disc := range d.Discriminators {
			disc.Schema = disc.Schema.clone()
			ds[i] = disc
		}
		d.Discriminators = ds
	}
	return d
}

func (s Schema) clone() Schema {
	if s.Validator != nil {
		s.Validator = cloneM(s.Validator)
	}
	return s
}

// cloneM 递归复制嵌套的文档与数组，标量按值共享。
func cloneM(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case bson.M:
		return cloneM(x)
	case map[string]any:
		return map[string]any(cloneM(x))
	case bson.D:
		d := make(bson.D, len(x))
		for i, e := range x {
			d[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return d
	case bson.A:
		a := make(bson.A, len(x))
		for i, e := range x {
			a[i] = cloneValue(e)
		}
		return a
	case []any:
		a := make([]any, len(x))
		for i, e := range x {
			a[i] = cloneValue(e)
		}
		return a
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

// Pluralize 把模型名转为默认集合名：小写并复数化。
//
//	Animal -> animals, Category -> categories, Class -> classes, Box -> boxes
//	Bus -> buses, Analysis -> analyses, Birds -> birds
func Pluralize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	switch {
	case s == "":
		return ""
	case strings.HasSuffix(s, "ss"), strings.HasSuffix(s, "us"),
		strings.HasSuffix(s, "x"), strings.HasSuffix(s, "z"),
		strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "is") && len(s) > 2:
		return s[:len(s)-2] + "es"
	case strings.HasSuffix(s, "s"):
		// 已是复数形式
		return s
	case strings.HasSuffix(s, "y") && len(s) > 1 && !isVowel(s[len(s)-2]):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
