package xtenant

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"google.golang.org/grpc/metadata"
)

// Config 租户标识来源配置
type Config struct {
	// Identifier 请求头或 payload 字段名，例如 "X-TENANT-ID"
	Identifier string
	// FromSubdomain 从 Host 的首个标签提取（仅 HTTP 生效）
	FromSubdomain bool
}

// Configured 报告是否配置了任意一种来源。
func (c Config) Configured() bool {
	return c.FromSubdomain || strings.TrimSpace(c.Identifier) != ""
}

// Extract 按 src.Kind 提取租户标识。
func Extract(src Source, cfg Config) (string, error) {
	if !cfg.Configured() {
		return "", newError(src.Kind, "", ErrMissingConfig)
	}
	var (
		id  string
		err error
	)
	switch src.Kind {
	case KindHTTP:
		id, err = extractHTTP(src, cfg)
	case KindRPC, KindEvent:
		id, err = extractPayload(src, cfg)
	default:
		return "", newError(src.Kind, "", ErrUnknownKind)
	}
	if err != nil {
		return "", err
	}
	if !safeID(id) {
		key := cfg.Identifier
		if src.Kind == KindHTTP && cfg.FromSubdomain {
			key = "host"
		}
		return "", newError(src.Kind, key, ErrUnsafeIdentifier)
	}
	return id, nil
}

// unsafeIDChars 连接串分隔符与 MongoDB 库名禁用字符。
const unsafeIDChars = `/\.?#@:&=%"$*<>|,;+`

// CheckID 校验租户标识能否安全地拼进连接串。
// 空白、控制字符与 unsafeIDChars 中的字符都会被拒绝。
func CheckID(id string) error {
	if id == "" {
		return &Error{Key: "tenant", Err: ErrMissingIdentifier}
	}
	if !safeID(id) {
		return &Error{Key: "tenant", Err: ErrUnsafeIdentifier}
	}
	return nil
}

func safeID(id string) bool {
	for _, r := range id {
		if r <= ' ' || r == 0x7f || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
		if strings.ContainsRune(unsafeIDChars, r) {
			return false
		}
	}
	return true
}

func extractHTTP(src Source, cfg Config) (string, error) {
	if cfg.FromSubdomain {
		id := Subdomain(src.Host)
		if id == "" {
			return "", newError(KindHTTP, "host", ErrMissingIdentifier)
		}
		return id, nil
	}
	id := headerValue(src.Header, cfg.Identifier)
	if id == "" {
		return "", newError(KindHTTP, cfg.Identifier, ErrMissingIdentifier)
	}
	return id, nil
}

// extractPayload 处理 RPC 与事件：payload 字段优先，其次 metadata。
// 这两种形态没有 Host，子域名模式下必须同时配置 Identifier。
func extractPayload(src Source, cfg Config) (string, error) {
	key := strings.TrimSpace(cfg.Identifier)
	if key == "" {
		return "", newError(src.Kind, "", ErrMissingConfig)
	}

	if v, ok := lookupPayload(src.Payload, key); ok {
		id, err := scalarString(v)
		if err != nil {
			return "", newError(src.Kind, key, err)
		}
		if id != "" {
			return id, nil
		}
	}

	if id := metadataValue(src.Meta, key); id != "" {
		return id, nil
	}
	return "", newError(src.Kind, key, ErrMissingIdentifier)
}

// Subdomain 返回 host 的首个标签。
//
// 先去掉端口与空白，按 "." 切分后反转取最后一个元素，
// "acme.app.example.com:443" 得到 "acme"。
func Subdomain(host string) string {
	host, _, _ = strings.Cut(host, ":")
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	labels := strings.Split(host, ".")
	// 反转后取最后一个，即原序第一个
	return strings.TrimSpace(labels[0])
}

func headerValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	if v := strings.TrimSpace(h.Get(name)); v != "" {
		return v
	}
	// 非规范化 key（直接写入 map 的 header）回退到逐项比较
	for k, vs := range h {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
	}
	return ""
}

func metadataValue(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	// md.Get 会把 key 转小写
	if vals := md.Get(key); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func lookupPayload(payload map[string]any, key string) (any, bool) {
	if payload == nil {
		return nil, false
	}
	if v, ok := payload[key]; ok {
		return v, true
	}
	for k, v := range payload {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// scalarString 将 payload 值转为字符串标识。
// 空值返回 ""，非空对象或数组返回 ErrInvalidIdentifier。
func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(x), nil
	case []byte:
		return strings.TrimSpace(string(x)), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case fmt.Stringer:
		return strings.TrimSpace(x.String()), nil
	case map[string]any:
		if isEmptyMap(x) {
			return "", nil
		}
		return "", ErrInvalidIdentifier
	case []any:
		if len(x) == 0 {
			return "", nil
		}
		return "", ErrInvalidIdentifier
	default:
		return "", ErrInvalidIdentifier
	}
}

// isEmptyMap 没有任何非 nil value 的 map 视为空。
func isEmptyMap(m map[string]any) bool {
	for _, v := range m {
		if v != nil {
			return false
		}
	}
	return true
}
