// Package utils 提供通用工具函数
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// 单号随机部分的取值范围
var noSuffixMax = big.NewInt(1_000_000)

// GenerateNo 生成业务单号：前缀 + UTC 秒级时间戳 + 6 位随机数
// 唯一性由数据库唯一索引保证，这里只降低碰撞概率
func GenerateNo(prefix string) string {
	n, err := rand.Int(rand.Reader, noSuffixMax)
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % noSuffixMax.Int64())
	}
	return fmt.Sprintf("%s%s%06d", prefix, time.Now().UTC().Format("20060102150405"), n.Int64())
}

// FormatRupiah 格式化印尼盾金额，如 Rp 150.000
func FormatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "Rp " + b.String()
}

// Contains 判断切片是否包含元素
func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// Unique 去重并保持原有顺序
func Unique[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// 分页默认值
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination 分页参数，Total 由查询方回填
type Pagination struct {
	Page     int   `json:"page" form:"page"`
	PageSize int   `json:"page_size" form:"page_size"`
	Total    int64 `json:"total"`
}

func (p *Pagination) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

func (p *Pagination) GetLimit() int {
	return p.PageSize
}

// Normalize 页码从 1 开始，页大小限制在 [1, MaxPageSize]
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}
