// Package qrcode 把收银台链接渲染成二维码
package qrcode

import (
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/skip2/go-qrcode"
)

// 默认参数
const (
	DefaultSize     = 256
	defaultCapacity = 512
	dataURLPrefix   = "data:image/png;base64,"
)

// ErrInvalidURL 收银台链接不是 http(s) 地址
var ErrInvalidURL = stderrors.New("qrcode: invalid checkout url")

// Generator 收银台二维码生成器
// 同一账单链接在有效期内反复被查询，渲染结果按链接缓存
type Generator struct {
	size     int
	level    qrcode.RecoveryLevel
	capacity int

	mu    sync.Mutex
	cache map[string]string
	order []string
}

// Option 生成器选项
type Option func(*Generator)

// WithSize 设置二维码尺寸（像素）
func WithSize(size int) Option {
	return func(g *Generator) {
		if size > 0 {
			g.size = size
		}
	}
}

// WithCapacity 设置缓存条数，0 表示不缓存
func WithCapacity(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.capacity = n
		}
	}
}

// NewGenerator 创建生成器
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		size:     DefaultSize,
		level:    qrcode.Medium,
		capacity: defaultCapacity,
		cache:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PNG 渲染 PNG
func (g *Generator) PNG(checkoutURL string) ([]byte, error) {
	if err := validate(checkoutURL); err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(checkoutURL, g.level, g.size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	return png, nil
}

// DataURL 渲染为 data URL，可直接放进 <img src>
func (g *Generator) DataURL(checkoutURL string) (string, error) {
	if v, ok := g.lookup(checkoutURL); ok {
		return v, nil
	}
	png, err := g.PNG(checkoutURL)
	if err != nil {
		return "", err
	}
	v := dataURLPrefix + base64.StdEncoding.EncodeToString(png)
	g.store(checkoutURL, v)
	return v, nil
}

// Cached 已缓存的条数
func (g *Generator) Cached() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

func (g *Generator) lookup(key string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.cache[key]
	return v, ok
}

// store 超出容量时淘汰最早写入的条目
func (g *Generator) store(key, value string) {
	if g.capacity == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cache[key]; ok {
		return
	}
	for len(g.order) >= g.capacity {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.cache, oldest)
	}
	g.cache[key] = value
	g.order = append(g.order, key)
}

func validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	return nil
}
